package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Request-local error codes
const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrAdmissionLimited  ErrorCode = "ADMISSION_LIMITED"
)

// Round-level error codes
const (
	ErrDecisionTimeout     ErrorCode = "DECISION_TIMEOUT"
	ErrConsensusNotReached ErrorCode = "CONSENSUS_NOT_REACHED"
	ErrCoordinationFailure ErrorCode = "COORDINATION_FAILURE"
)

// Snapshot / resume error codes
const (
	ErrExpiredSnapshot    ErrorCode = "EXPIRED_SNAPSHOT"
	ErrIntegrityError     ErrorCode = "INTEGRITY_ERROR"
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
)

// Infrastructure error codes
const (
	ErrCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	ErrCallTimeout       ErrorCode = "CALL_TIMEOUT"
	ErrCoordinatorClosed ErrorCode = "COORDINATOR_CLOSED"
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable. Wrapped errors are searched.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error. Wrapped errors are
// searched.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
