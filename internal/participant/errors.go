package participant

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("participant not found")
	ErrConflict     = errors.New("participant already exists")
	ErrInvalidInput = errors.New("invalid input")

	// ErrBadCredentials covers unknown email and wrong password alike so the
	// login path never reveals which one failed.
	ErrBadCredentials = errors.New("invalid email or password")
	ErrUnconfirmed    = errors.New("account is not confirmed")
	ErrLocked         = errors.New("account is locked")
	ErrDisabled       = errors.New("account has been disabled")
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures for one save attempt. The
// save is all-or-nothing: nothing is persisted when this is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }
