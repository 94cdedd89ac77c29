package knowledge

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports rejected input to a knowledge base mutation.
// The knowledge base is unchanged when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MalformedError reports a source document that cannot be loaded.
type MalformedError struct {
	Problems []string
}

func (e *MalformedError) Error() string {
	if len(e.Problems) == 0 {
		return "malformed knowledge base"
	}
	return "malformed knowledge base: " + strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsMalformed reports whether err is, or wraps, a *MalformedError.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
