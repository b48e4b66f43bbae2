package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Handlers map these onto HTTP statuses; everything
// else is treated as a storage failure.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// StoreError provides structured error information for API responses.
type StoreError struct {
	Kind    error                  `json:"-"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Kind
}

// NewValidationError reports a rejected input, e.g. empty thread text or a
// missing attachment payload.
func NewValidationError(message string, details map[string]interface{}) *StoreError {
	return &StoreError{Kind: ErrValidation, Code: "VALIDATION", Message: message, Details: details}
}

// NewNotFoundError reports a missing task, attachment, or archive entry.
func NewNotFoundError(message string, details map[string]interface{}) *StoreError {
	return &StoreError{Kind: ErrNotFound, Code: "NOT_FOUND", Message: message, Details: details}
}

// NewConflictError reports a stale concurrent write. Reserved for callers
// that layer optimistic concurrency on top of the store.
func NewConflictError(message string, details map[string]interface{}) *StoreError {
	return &StoreError{Kind: ErrConflict, Code: "CONFLICT", Message: message, Details: details}
}
