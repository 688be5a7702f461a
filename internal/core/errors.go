package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FormField is the key used for errors that concern the whole object
// rather than a single field.
const FormField = "_form"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrInUse and ErrDuplicate are conflicts; errors.Is(err, ErrConflict)
	// holds for both.
	ErrInUse     = fmt.Errorf("in use: %w", ErrConflict)
	ErrDuplicate = fmt.Errorf("duplicate: %w", ErrConflict)
)

// FieldErrors maps a field name to one or more human readable messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

// Err returns a *ValidationError when fe is non-empty, nil otherwise.
func (fe FieldErrors) Err() error {
	if fe.Empty() {
		return nil
	}
	return &ValidationError{Fields: fe}
}

// ValidationError is a client supplied shape or range violation.
type ValidationError struct {
	Fields FieldErrors
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: FieldErrors{field: {msg}}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// InUseError reports how many rows still reference an entity.
type InUseError struct {
	Entity        string
	ID            int64
	Transactions  int64
	Subscriptions int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is in use by %d transactions and %d subscriptions",
		e.Entity, e.ID, e.Transactions, e.Subscriptions)
}

func (e *InUseError) Unwrap() error { return ErrInUse }

// AsValidation returns the ValidationError wrapped by err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
