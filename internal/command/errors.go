package command

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes queue errors.
type ErrorCode string

const (
	// ErrCodeUnrecognized indicates no registered handler for a command name.
	// The scheduler treats this as a misconfigured registry and purges the queue.
	ErrCodeUnrecognized ErrorCode = "UNRECOGNIZED_COMMAND"

	// ErrCodeExecution indicates a command rejected its future.
	// The row is finalized and the queue moves on.
	ErrCodeExecution ErrorCode = "COMMAND_EXECUTION_FAILED"

	// ErrCodeMalformed indicates a descriptor that cannot be scheduled
	// (missing name, unparseable args or priority). Skipped individually.
	ErrCodeMalformed ErrorCode = "MALFORMED_FOLLOW_ON"

	// ErrCodePersistence indicates a durable store operation failed.
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILED"
)

// Error is a queue error with a category code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Command is the command name involved, if any.
	Command string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Command != "" {
		msg = fmt.Sprintf("%s (command=%s)", msg, e.Command)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewUnrecognizedError reports a command name with no registered handler.
func NewUnrecognizedError(name string) *Error {
	return &Error{
		Code:    ErrCodeUnrecognized,
		Message: "no handler registered",
		Command: name,
	}
}

// NewExecutionError wraps the rejection of a command's future.
func NewExecutionError(name string, err error) *Error {
	return &Error{
		Code:    ErrCodeExecution,
		Message: "command rejected",
		Command: name,
		Err:     err,
	}
}

// NewMalformedError reports an unschedulable descriptor.
func NewMalformedError(name, message string) *Error {
	return &Error{
		Code:    ErrCodeMalformed,
		Message: message,
		Command: name,
	}
}

// NewPersistenceError wraps a failed store operation.
func NewPersistenceError(op string, err error) *Error {
	return &Error{
		Code:    ErrCodePersistence,
		Message: op,
		Err:     err,
	}
}

// IsUnrecognized reports whether err is an UNRECOGNIZED_COMMAND error.
func IsUnrecognized(err error) bool {
	return hasCode(err, ErrCodeUnrecognized)
}

// IsExecutionError reports whether err is a COMMAND_EXECUTION_FAILED error.
func IsExecutionError(err error) bool {
	return hasCode(err, ErrCodeExecution)
}

// IsMalformed reports whether err is a MALFORMED_FOLLOW_ON error.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformed)
}

// IsPersistenceError reports whether err is a PERSISTENCE_FAILED error.
func IsPersistenceError(err error) bool {
	return hasCode(err, ErrCodePersistence)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
