package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrDecryption            = errors.New("failed to decrypt value")
	ErrConflict              = errors.New("conflict")
	ErrUniqueViolation       = errors.New("unique constraint violation")

	ErrUserNotFound       = errors.New("user not found")
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrWorkspaceNotFound  = errors.New("workspace not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal server error")
)

// ValidationError reports malformed input. Its message is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when a write collides with an existing record.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// UniqueViolationError is the shape repositories use to surface unique
// constraint failures. Constraint names the violated index.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s: %v", e.Constraint, e.Err)
}

func (e *UniqueViolationError) Unwrap() []error {
	return []error{ErrUniqueViolation, e.Err}
}
