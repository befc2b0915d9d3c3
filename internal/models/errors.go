package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Typed errors below unwrap to one of these so callers
// can branch with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrMigration          = errors.New("migration failed")
	ErrDirectory          = errors.New("user directory error")
)

// FieldError describes a validation failure for a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError holds one or more field-level validation failures.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation: %d errors (%s)", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// HasField reports whether the error names the given field.
func (e *ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// NotFoundError reports a reference to an id that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// QuotaExceededError reports a write rejected because the store is full.
// The previously committed value under Key is left untouched.
type QuotaExceededError struct {
	Key   string
	Need  int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded writing %q (%d bytes needed, limit %d)", e.Key, e.Need, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// BackendUnavailableError reports a backend that is not implemented or failed
// its health check.
type BackendUnavailableError struct {
	Backend string
	Reason  string
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %s", e.Backend, e.Reason)
}

func (e *BackendUnavailableError) Unwrap() error { return ErrBackendUnavailable }

// MigrationError reports a failed schema or backend migration.
type MigrationError struct {
	From string
	To   string
	Err  error
}

func (e *MigrationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("migration %s -> %s failed", e.From, e.To)
	}
	return fmt.Sprintf("migration %s -> %s failed: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMigration}
	}
	return []error{ErrMigration, e.Err}
}

// DirectoryError reports a rejected user directory operation: duplicate name,
// selecting an inactive user, or a missing user. Missing users also match
// ErrNotFound.
type DirectoryError struct {
	Op      string
	UserID  string
	Reason  string
	Missing bool
}

func (e *DirectoryError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.UserID, e.Reason)
}

func (e *DirectoryError) Unwrap() []error {
	if e.Missing {
		return []error{ErrDirectory, ErrNotFound}
	}
	return []error{ErrDirectory}
}
