// Package engine implements forward chaining over a rule set.
//
// Infer is a pure function: it never mutates its inputs, performs no I/O
// and produces the same result for the same inputs.
package engine

import (
	"fmt"
	"strings"

	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/models"
)

// Visibility controls when a conclusion asserted during a pass can satisfy
// premises of other rules.
type Visibility int

const (
	// NextPass exposes conclusions from the following pass on.
	NextPass Visibility = iota
	// SamePass exposes conclusions immediately, to rules later in the pass.
	SamePass
)

func (v Visibility) String() string {
	switch v {
	case NextPass:
		return "next_pass"
	case SamePass:
		return "same_pass"
	default:
		return fmt.Sprintf("Visibility(%d)", int(v))
	}
}

// ParseVisibility maps a configured name to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "", "next_pass":
		return NextPass, nil
	case "same_pass":
		return SamePass, nil
	default:
		return NextPass, fmt.Errorf("unknown visibility %q (use next_pass or same_pass)", s)
	}
}

// Engine runs forward chaining and reports fired rules whose conclusion id
// starts with DiagnosisPrefix as diagnoses.
type Engine struct {
	DiagnosisPrefix string
	Visibility      Visibility
}

// New returns an engine reporting conclusions with the given prefix.
// An empty prefix selects knowledge.DefaultDiagnosisPrefix.
func New(prefix string) *Engine {
	if prefix == "" {
		prefix = knowledge.DefaultDiagnosisPrefix
	}
	return &Engine{DiagnosisPrefix: prefix}
}

// Infer runs the default engine.
func Infer(initialFacts []string, rules []models.Rule) models.InferenceResult {
	return New("").Infer(initialFacts, rules)
}

// Infer repeatedly passes over rules in declaration order, firing every
// not-yet-fired rule whose premises are all known facts, until a pass fires
// nothing. A rule fires at most once per call. Unfired rules are traced on
// every pass they are evaluated in.
func (e *Engine) Infer(initialFacts []string, rules []models.Rule) models.InferenceResult {
	facts := newFactSet(initialFacts)
	inferred := make([]string, 0)
	fired := make(map[string]bool, len(rules))
	trace := make([]models.TraceEntry, 0, len(rules))

	// Each productive pass fires at least one new rule, so len(rules)+1
	// passes always reach the fixed point.
	maxPasses := len(rules) + 1
	passes := 0

	for pass := 1; pass <= maxPasses; pass++ {
		passes = pass
		changed := false
		fresh := make(map[string]bool)

		known := func(id string) bool {
			if !facts.has(id) {
				return false
			}
			return e.Visibility == SamePass || !fresh[id]
		}

		for _, rule := range rules {
			if fired[rule.ID] {
				continue
			}

			matched := make([]string, 0, len(rule.If))
			for _, premise := range rule.If {
				if known(premise) {
					matched = append(matched, premise)
				}
			}

			if len(matched) == len(rule.If) {
				if facts.add(rule.Then.ID) {
					inferred = append(inferred, rule.Then.ID)
					fresh[rule.Then.ID] = true
				}
				fired[rule.ID] = true
				changed = true

				conclusion := rule.Then
				trace = append(trace, models.TraceEntry{
					Pass:       pass,
					RuleID:     rule.ID,
					Fired:      true,
					Matched:    append([]string(nil), rule.If...),
					Conclusion: &conclusion,
					Confidence: rule.Confidence,
				})
				continue
			}

			trace = append(trace, models.TraceEntry{
				Pass:       pass,
				RuleID:     rule.ID,
				Fired:      false,
				Matched:    matched,
				Needed:     len(rule.If),
				Confidence: 0,
			})
		}

		if !changed {
			break
		}
	}

	return models.InferenceResult{
		Facts:     facts.list(),
		Inferred:  inferred,
		Diagnoses: e.diagnoses(rules, fired),
		Trace:     trace,
		Passes:    passes,
	}
}

// IsDiagnosis reports whether a conclusion id marks a reportable diagnosis.
func (e *Engine) IsDiagnosis(conclusionID string) bool {
	return strings.HasPrefix(conclusionID, e.DiagnosisPrefix)
}

func (e *Engine) diagnoses(rules []models.Rule, fired map[string]bool) []models.Diagnosis {
	out := make([]models.Diagnosis, 0)
	for _, rule := range rules {
		if !fired[rule.ID] || !e.IsDiagnosis(rule.Then.ID) {
			continue
		}
		out = append(out, models.Diagnosis{
			RuleID:        rule.ID,
			DiagnosisID:   rule.Then.ID,
			DiagnosisText: rule.Then.Text,
			Confidence:    rule.Confidence,
		})
	}
	return out
}
