package app

import (
	"errors"
	"strings"

	"bootcamp/internal/validation"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates that the write would duplicate an existing record.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries the per-field failures of a rejected input.
type ValidationError struct {
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Fields returns the first message for each failing field.
func (e *ValidationError) Fields() map[string]string {
	return validation.ErrorMap(e.Errors)
}

// validate runs spec over values and wraps any failures.
func validate(spec validation.FormSpec, values validation.Values) error {
	res := spec.Validate(values)
	if res.Valid {
		return nil
	}
	return &ValidationError{Errors: res.Errors}
}

func fieldError(field, message string) error {
	return &ValidationError{Errors: []validation.FieldError{{Field: field, Message: message}}}
}
