package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuantity indicates a quantity that is not a positive integer.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrSelectionCapExceeded indicates more lines were chosen for checkout than allowed.
	ErrSelectionCapExceeded = errors.New("selection cap exceeded")
	// ErrEmptySelection indicates checkout was started with nothing selected.
	ErrEmptySelection = errors.New("no items selected")
	// ErrIncompatibleSnapshot indicates a persisted snapshot written by an unknown schema version.
	ErrIncompatibleSnapshot = errors.New("incompatible snapshot version")
	// ErrClosed indicates the engine no longer accepts mutations.
	ErrClosed = errors.New("cart engine closed")
)

// ValidationError reports a malformed field found at a storage or network boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
