// Package errors provides typed errors for lancfg.
//
// Errors carry a code so the command line can tell a rejected edit
// (validation, conflict) from a failure to touch the system (io, command).
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of error.
type ErrorCode string

const (
	// ErrCodeValidation indicates invalid user input or configuration values.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeNotFound indicates a referenced device, file or rule does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates an operation would break a uniqueness or
	// membership invariant (duplicate name, device already enslaved).
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeIO indicates reading or writing a configuration file failed.
	ErrCodeIO ErrorCode = "IO_ERROR"

	// ErrCodeCommand indicates an external command (wicked, ifup, ethtool) failed.
	ErrCodeCommand ErrorCode = "COMMAND_ERROR"

	// ErrCodeConfig indicates the tool's own configuration is unusable.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new domain error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks against a code.
var (
	ErrValidation = New(ErrCodeValidation, "validation")
	ErrNotFound   = New(ErrCodeNotFound, "not found")
	ErrConflict   = New(ErrCodeConflict, "conflict")
	ErrIO         = New(ErrCodeIO, "io")
	ErrCommand    = New(ErrCodeCommand, "command")
	ErrConfig     = New(ErrCodeConfig, "config")
)

// NotFound creates a not-found error for the given kind of object.
func NotFound(kind, name string) *Error {
	return Newf(ErrCodeNotFound, "%s %q not found", kind, name)
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return Newf(ErrCodeConflict, format, args...)
}

// Invalid creates a validation error.
func Invalid(format string, args ...any) *Error {
	return Newf(ErrCodeValidation, format, args...)
}

// IO wraps a filesystem error.
func IO(message string, cause error) *Error {
	return Wrap(ErrCodeIO, message, cause)
}

// Command wraps an external command failure.
func Command(message string, cause error) *Error {
	return Wrap(ErrCodeCommand, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	if _, ok := err.(ValidationErrors); ok {
		return ErrCodeValidation
	}
	return ""
}

// ValidationError describes one problem found while validating a field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationErrors aggregates all problems found in one validation pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrValidation) match aggregated validation errors.
func (v ValidationErrors) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == ErrCodeValidation
	}
	return false
}

// Add appends a problem for field.
func (v *ValidationErrors) Add(field, format string, args ...any) {
	*v = append(*v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns v as an error, or nil when empty.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
