package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every pipeline stage. Callers branch on them with errors.Is.
var (
	// ErrParse marks a single malformed article. Never fatal for a document.
	ErrParse = errors.New("parse error")
	// ErrConfiguration marks invalid settings detected before any work starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrStoreUnavailable marks a transient failure of the vector, relational or blob store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound marks a missing record. Soft: callers drop the item and continue.
	ErrNotFound = errors.New("not found")
	// ErrModelUnavailable marks a failure to load or call the embedding model.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrTimeout          = errors.New("deadline exceeded")
)

// ValidationError wraps a sentinel with context.
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

// Wrap tags err with an error kind and an operation name. Both kind and err
// remain visible to errors.Is.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// IsRetryable reports whether err is worth retrying as a whole batch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
