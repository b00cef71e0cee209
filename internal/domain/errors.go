package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.
// Callers match on the kind with errors.Is; refinements wrap their kind.

var (
	// Validation
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNumeric          = errors.New("numeric error")

	// Registry lookups
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrDuplicateEntity = errors.New("duplicate entity")

	// Lifecycle
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// Access
	ErrNotAMember    = errors.New("not a member")
	ErrNotAuthorized = errors.New("not authorized")

	// Tokens
	ErrInsufficientBalance = errors.New("insufficient balance")
)

var (
	ErrDuplicateDCA = fmt.Errorf("%w: contribution activity already registered", ErrDuplicateEntity)
	ErrUnknownDCA   = fmt.Errorf("%w: contribution activity not registered", ErrUnknownEntity)
	ErrAlreadyVoted = fmt.Errorf("%w: already voted", ErrInvalidStateTransition)
)

// ─── Field Errors ───────────────────────────────────────────────────────────

// FieldError names the offending input of a rejected call.
type FieldError struct {
	Kind   error
	Field  string
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Detail)
}

// Unwrap exposes the kind to errors.Is.
func (e *FieldError) Unwrap() error { return e.Kind }

// InvalidField returns an ErrInvalidParameter FieldError.
func InvalidField(field, format string, args ...any) error {
	return &FieldError{Kind: ErrInvalidParameter, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// RequiredField reports a missing mandatory input.
func RequiredField(field string) error {
	return &FieldError{Kind: ErrInvalidParameter, Field: field, Detail: "required"}
}
