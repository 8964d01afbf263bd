package pipeline

import (
	"errors"
	"strings"
)

// Kind classifies why an invocation aborted. The HTTP layer maps it to a
// status code.
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindDispatch   Kind = "dispatch"
	KindInternal   Kind = "internal"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) String() string { return f.Field + " " + f.Reason }

// ValidationError lists every problem found in a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Missing returns the names of required fields that were absent.
func (e *ValidationError) Missing() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Reason == reasonRequired {
			out = append(out, f.Field)
		}
	}
	return out
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
