// Package apperr provides the closed error taxonomy surfaced by the API.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeValidation marks malformed or out-of-range input.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound marks an unknown game id, including just-deleted games.
	CodeNotFound Code = "NOT_FOUND"
	// CodeInactiveSession marks chat/accuse calls on a non-active game.
	CodeInactiveSession Code = "INACTIVE_SESSION"
	// CodeUpstreamUnavailable marks generation-service failures.
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	// CodeInternal marks unexpected failures.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded error. Message is safe to show to the player; the
// wrapped cause is for logs and debug responses only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation is shorthand for a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// CodeOf extracts the code from an error chain, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the player-safe message, defaulting to a generic one.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
