// Package knowledge holds the mutable symptom and rule collections a session
// reasons over, together with loading and validation of source documents.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

// DefaultDiagnosisPrefix marks conclusion ids that are reportable diagnoses.
const DefaultDiagnosisPrefix = "d_"

// maxAllocAttempts bounds the search for a non-colliding id.
const maxAllocAttempts = 10000

// Base is an ordered, append-only knowledge base. It is not safe for
// concurrent use; callers serialize access.
type Base struct {
	symptoms []models.Symptom
	rules    []models.Rule

	symptomIdx    map[string]int
	ruleIdx       map[string]int
	conclusionIdx map[string]int

	alloc             IDAllocator
	defaultConfidence float64
	prefix            string
}

func newBase(opts ...Option) *Base {
	b := &Base{
		symptomIdx:        make(map[string]int),
		ruleIdx:           make(map[string]int),
		conclusionIdx:     make(map[string]int),
		alloc:             NewSequenceAllocator(),
		defaultConfidence: DefaultConfidence,
		prefix:            DefaultDiagnosisPrefix,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Symptoms returns a copy of the symptom collection in insertion order.
func (b *Base) Symptoms() []models.Symptom {
	return append([]models.Symptom{}, b.symptoms...)
}

// Rules returns a deep copy of the rule collection in declaration order.
func (b *Base) Rules() []models.Rule {
	out := make([]models.Rule, len(b.rules))
	for i, r := range b.rules {
		out[i] = copyRule(r)
	}
	return out
}

// DiagnosisPrefix returns the prefix given to generated conclusion ids.
func (b *Base) DiagnosisPrefix() string {
	return b.prefix
}

// HasSymptom reports whether id names a symptom.
func (b *Base) HasSymptom(id string) bool {
	return b.hasSymptom(id)
}

// HasFact reports whether id is a symptom id or some rule's conclusion id.
func (b *Base) HasFact(id string) bool {
	if b.hasSymptom(id) {
		return true
	}
	_, ok := b.conclusionIdx[id]
	return ok
}

// Label returns the human-readable text for a fact id, or the id itself.
func (b *Base) Label(id string) string {
	if i, ok := b.symptomIdx[id]; ok {
		return b.symptoms[i].Text
	}
	if i, ok := b.conclusionIdx[id]; ok {
		return b.rules[i].Then.Text
	}
	return id
}

// Labels maps each id to its Label.
func (b *Base) Labels(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = b.Label(id)
	}
	return out
}

// Clone returns an independent copy sharing only the id allocator.
func (b *Base) Clone() *Base {
	c := newBase(WithAllocator(b.alloc), WithDefaultConfidence(b.defaultConfidence), WithDiagnosisPrefix(b.prefix))
	for _, s := range b.symptoms {
		c.appendSymptom(s)
	}
	for _, r := range b.rules {
		c.appendRule(copyRule(r))
	}
	return c
}

// Document exports the base in its source document layout.
func (b *Base) Document() *models.Document {
	doc := &models.Document{
		Symptoms: make([]models.SymptomDoc, len(b.symptoms)),
		Rules:    make([]models.RuleDoc, len(b.rules)),
	}
	for i, s := range b.symptoms {
		doc.Symptoms[i] = models.SymptomDoc{ID: s.ID, Text: s.Text}
	}
	for i, r := range b.rules {
		doc.Rules[i] = models.RuleDoc{
			ID:         r.ID,
			If:         append([]string(nil), r.If...),
			Then:       models.ConclusionDoc{ID: r.Then.ID, Text: r.Then.Text},
			Confidence: r.Confidence,
		}
	}
	return doc
}

// AddSymptom appends a symptom with a freshly allocated id.
func (b *Base) AddSymptom(text string) (models.Symptom, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Symptom{}, invalid("text", "symptom text is required")
	}

	id, err := b.allocate(KindSymptom, func(id string) bool {
		return !b.HasFact(id) && !b.hasRule(id)
	})
	if err != nil {
		return models.Symptom{}, err
	}

	s := models.Symptom{ID: id, Text: text}
	b.appendSymptom(s)
	return s, nil
}

// AddRule appends a rule concluding conclusion from premises. The conclusion
// id is the diagnosis prefix followed by the new rule id. confidence may be a
// number or numeric string; absent, non-numeric or zero values take the
// default.
func (b *Base) AddRule(premises []string, conclusion string, confidence any) (models.Rule, error) {
	var ifs []string
	for _, p := range premises {
		if p = strings.TrimSpace(p); p != "" {
			ifs = append(ifs, p)
		}
	}
	if len(ifs) == 0 {
		return models.Rule{}, invalid("premises", "at least one premise is required")
	}

	conclusion = strings.TrimSpace(conclusion)
	if conclusion == "" {
		return models.Rule{}, invalid("conclusion", "conclusion text is required")
	}

	conf, present, err := coerceConfidence(confidence)
	switch {
	case err != nil || !present || conf == 0:
		conf = b.defaultConfidence
	case !inRange(conf):
		return models.Rule{}, invalid("confidence", "%g is outside (0,1]", conf)
	}

	id, err := b.allocate(KindRule, func(id string) bool {
		return !b.hasRule(id) && !b.HasFact(b.prefix+id)
	})
	if err != nil {
		return models.Rule{}, err
	}

	r := models.Rule{
		ID:         id,
		If:         ifs,
		Then:       models.Conclusion{ID: b.prefix + id, Text: conclusion},
		Confidence: conf,
	}
	b.appendRule(r)
	return copyRule(r), nil
}

func (b *Base) allocate(kind string, free func(string) bool) (string, error) {
	for range maxAllocAttempts {
		if id := b.alloc.Next(kind); id != "" && free(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate %s id: no free id after %d attempts", kind, maxAllocAttempts)
}

func (b *Base) hasSymptom(id string) bool {
	_, ok := b.symptomIdx[id]
	return ok
}

func (b *Base) hasRule(id string) bool {
	_, ok := b.ruleIdx[id]
	return ok
}

func (b *Base) appendSymptom(s models.Symptom) {
	b.symptomIdx[s.ID] = len(b.symptoms)
	b.symptoms = append(b.symptoms, s)
	b.observe(s.ID)
}

func (b *Base) appendRule(r models.Rule) {
	b.ruleIdx[r.ID] = len(b.rules)
	if _, ok := b.conclusionIdx[r.Then.ID]; !ok {
		b.conclusionIdx[r.Then.ID] = len(b.rules)
	}
	b.rules = append(b.rules, r)
	b.observe(r.ID, r.Then.ID, strings.TrimPrefix(r.Then.ID, b.prefix))
}

func (b *Base) observe(ids ...string) {
	o, ok := b.alloc.(idObserver)
	if !ok {
		return
	}
	for _, id := range ids {
		o.Observe(id)
	}
}

func copyRule(r models.Rule) models.Rule {
	r.If = append([]string(nil), r.If...)
	return r
}
