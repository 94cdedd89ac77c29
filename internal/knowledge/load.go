package knowledge

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

// docValidate checks field presence on source documents.
var docValidate *validator.Validate

func init() {
	docValidate = validator.New()
	docValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := docValidate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
}

// Option configures a Base at load time.
type Option func(*Base)

// WithAllocator sets the id allocator used by AddSymptom and AddRule.
func WithAllocator(a IDAllocator) Option {
	return func(b *Base) {
		if a != nil {
			b.alloc = a
		}
	}
}

// WithDefaultConfidence overrides DefaultConfidence for rules without one.
func WithDefaultConfidence(c float64) Option {
	return func(b *Base) {
		if inRange(c) {
			b.defaultConfidence = c
		}
	}
}

// WithDiagnosisPrefix sets the prefix given to conclusion ids of added rules.
func WithDiagnosisPrefix(p string) Option {
	return func(b *Base) {
		if p != "" {
			b.prefix = p
		}
	}
}

// Load deep-copies doc into a new, independently mutable Base.
// Every problem found is reported in a single *MalformedError.
func Load(doc *models.Document, opts ...Option) (*Base, error) {
	if doc == nil {
		return nil, &MalformedError{Problems: []string{"document is missing"}}
	}

	b := newBase(opts...)
	var problems []string

	if err := docValidate.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validate document: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	for i, s := range doc.Symptoms {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			continue
		}
		if b.hasSymptom(id) {
			problems = append(problems, fmt.Sprintf("symptoms[%d]: duplicate id %q", i, id))
			continue
		}
		b.appendSymptom(models.Symptom{ID: id, Text: strings.TrimSpace(s.Text)})
	}

	for i, r := range doc.Rules {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		if b.hasRule(id) {
			problems = append(problems, fmt.Sprintf("rules[%d]: duplicate id %q", i, id))
			continue
		}

		conf, present, err := coerceConfidence(r.Confidence)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("rules[%d].confidence: %v is not numeric", i, r.Confidence))
			continue
		case !present:
			conf = b.defaultConfidence
		case !inRange(conf):
			problems = append(problems, fmt.Sprintf("rules[%d].confidence: %g outside (0,1]", i, conf))
			continue
		}

		premises := make([]string, 0, len(r.If))
		for _, p := range r.If {
			premises = append(premises, strings.TrimSpace(p))
		}
		b.appendRule(models.Rule{
			ID: id,
			If: premises,
			Then: models.Conclusion{
				ID:   strings.TrimSpace(r.Then.ID),
				Text: strings.TrimSpace(r.Then.Text),
			},
			Confidence: conf,
		})
	}

	if len(problems) > 0 {
		return nil, &MalformedError{Problems: problems}
	}
	return b, nil
}

// describeFieldError renders a validator failure as "rules[0].then.id: required".
func describeFieldError(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if fe.Tag() == "notblank" {
		return ns + ": blank"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s: %s=%s", ns, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: %s", ns, fe.Tag())
}
