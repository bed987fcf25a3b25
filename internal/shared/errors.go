package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionInvalid indicates an absent, revoked or expired session.
	ErrSessionInvalid = errors.New("session invalid or expired")
	// ErrForbidden indicates insufficient permission for the requested action.
	ErrForbidden = errors.New("insufficient permission")
	// ErrEmailNotVerified indicates the account has not completed verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountDisabled indicates a deactivated account.
	ErrAccountDisabled = errors.New("account disabled")
)

// LockedError reports a login rejected by an active lockout window.
type LockedError struct {
	RemainingSeconds int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d seconds", e.RemainingSeconds)
}

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ConflictError marks duplicate resources, protected-role violations and
// self-modification attempts.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// InternalError wraps an unexpected store/cache/hash/token failure. The cause
// stays available for logging; callers only see a generic message.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	return "internal error"
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// Internal wraps err as an InternalError unless it already is one.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}
	return &InternalError{Cause: err}
}
