// Package apperror defines the domain errors shared by the loader, the
// merge service and the HTTP handlers.
//
// Callers match on the sentinel values with errors.Is and pull the
// human-readable message out with errors.As(*AppError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrSourceMissing   = errors.New("source file missing")
	ErrSourceMalformed = errors.New("source file malformed")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field or source the error refers to
	Cause   error  // Optional: underlying error (I/O, decoder)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so
// errors.Is matches either of them.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// NotFound reports that the named resource does not exist.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Field:   resource,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// SourceMissing reports that a named data export does not exist.
func SourceMissing(name string, cause error) *AppError {
	return &AppError{
		Err:     ErrSourceMissing,
		Message: fmt.Sprintf("source %s not found", name),
		Field:   name,
		Cause:   cause,
	}
}

// SourceMalformed reports that a named data export could not be decoded
// into a list of records.
func SourceMalformed(name string, cause error) *AppError {
	return &AppError{
		Err:     ErrSourceMalformed,
		Message: fmt.Sprintf("source %s is not valid record JSON", name),
		Field:   name,
		Cause:   cause,
	}
}
