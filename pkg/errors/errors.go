// Package errors provides structured error types for the depscout service.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes map onto the failure taxonomy of the analysis pipeline:
//   - Fetch failures: NOT_FOUND, UNAUTHORIZED, RATE_LIMITED, TRANSFER_ERROR
//   - Collection failures: TOOL_NOT_FOUND, TIMEOUT, NONZERO_EXIT
//   - Parse failures: MALFORMED_TREE
//   - Scheduler failures: CAPACITY_EXCEEDED, JOB_NOT_FOUND
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotFound, "repository %s not found", repo)
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // Handle missing repository
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransfer, origErr, "failed to download %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidRepository Code = "INVALID_REPOSITORY"
	ErrCodeInvalidDependency Code = "INVALID_DEPENDENCY"
	ErrCodeInvalidMatchMode  Code = "INVALID_MATCH_MODE"

	// Snapshot fetch errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	ErrCodeRateLimited  Code = "RATE_LIMITED"
	ErrCodeTransfer     Code = "TRANSFER_ERROR"

	// Descriptor discovery outcomes
	ErrCodeNoBuildFiles Code = "NO_BUILD_FILES"

	// Tree collection errors
	ErrCodeToolNotFound Code = "TOOL_NOT_FOUND"
	ErrCodeTimeout      Code = "TIMEOUT"
	ErrCodeNonZeroExit  Code = "NONZERO_EXIT"

	// Tree parse errors
	ErrCodeMalformedTree Code = "MALFORMED_TREE"

	// Scheduler errors, returned synchronously to submit/status/cancel
	ErrCodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	ErrCodeJobNotFound      Code = "JOB_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ExitError carries the exit code and captured output of a failed build tool
// invocation. It is wrapped under ErrCodeNonZeroExit so callers can surface
// the tool's own diagnostics alongside the failure.
type ExitError struct {
	ExitCode int    // Process exit status
	Output   string // Captured output, possibly truncated
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("build tool exited with status %d", e.ExitCode)
}
