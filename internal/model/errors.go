package model

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP status codes by the handlers.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid identity token")
	ErrForbidden       = errors.New("access denied")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("unique key conflict")
	ErrProvider        = errors.New("identity provider error")
)

// ValidationError reports a missing or malformed field. Nothing is persisted
// when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PartialWriteError means the provider's role claim was written but the stored
// role was not. The two stores disagree until an operator repeats the change;
// the claim is not rolled back.
type PartialWriteError struct {
	UID       string
	ClaimRole Role
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("role claim for %s set to %q but stored role was not updated: %v", e.UID, e.ClaimRole, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
