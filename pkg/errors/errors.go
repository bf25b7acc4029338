package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrForbidden
	ErrInvalidTransition
	ErrTemplateNotFound
	ErrStore
	ErrInternal
)

// Code extracts the error code from err, or ErrInternal when err is not
// an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

// Forbidden marks an ownership check failure: the caller acted on a
// notification it does not own.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// InvalidTransition marks a delivery state machine precondition
// violation. The attempted mutation is never applied and never retried.
func InvalidTransition(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: message,
	}
}

func TemplateNotFound(eventType string) *AppError {
	return &AppError{
		Code:    ErrTemplateNotFound,
		Message: fmt.Sprintf("no template registered for event type %q", eventType),
	}
}

// Store wraps a persistence-layer fault. Callers treat it as retryable
// at the outer loop, not fatal to the process.
func Store(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrStore,
		Message: fmt.Sprintf("store operation %s failed", operation),
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}
