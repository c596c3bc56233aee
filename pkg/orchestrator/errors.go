package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for containment
// and retry decisions.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed
	// on a later explicit request. Examples: configuration fetch
	// timeouts, bundle download failures.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassConflict indicates a placement conflict, such as the
	// reserved single-occupancy slot already holding an element.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: missing module name, unknown module, schema violations.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Error represents a classified orchestration error with module and
// operation context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Module is the module name that caused the error, if applicable.
	Module string `json:"module,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Module != "" && e.Operation != "":
		return fmt.Sprintf("[%s] %s (module=%s, operation=%s): %s",
			e.Class, e.Message, e.Module, e.Operation, e.unwrapMessage())
	case e.Module != "":
		return fmt.Sprintf("[%s] %s (module=%s): %s",
			e.Class, e.Message, e.Module, e.unwrapMessage())
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *Error {
	return &Error{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return &Error{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithModule adds module context to the error.
func (e *Error) WithModule(name string) *Error {
	e.Module = name
	return e
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to the error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// ClassOf returns the classification of err, or ErrorClassPermanent for
// unclassified errors.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassPermanent
}

// Common error codes.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeSlotOccupied = "SLOT_OCCUPIED"
	ErrCodeBundleFailed = "BUNDLE_FAILED"
	ErrCodeTransport    = "TRANSPORT_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
