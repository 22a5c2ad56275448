package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the booking engine and graph store.
var (
	ErrNotFound        = errors.New("not found")
	ErrOverlapConflict = errors.New("reservation interval overlaps an existing reservation")
	ErrInvalidInterval = errors.New("pickup date must be before return date")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidRating   = errors.New("rating out of range")
	ErrInvalidRole     = errors.New("unknown role")
	ErrMissingField    = errors.New("required field missing")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
