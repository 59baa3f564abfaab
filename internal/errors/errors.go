package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a cap2cal error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrConflict         ErrorCode = "CONFLICT"          // 409
	ErrLimitReached     ErrorCode = "LIMIT_REACHED"     // 403
	ErrExtractionFailed ErrorCode = "EXTRACTION_FAILED" // 502
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// AppError represents a structured error with code, status, and details.
type AppError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any
	cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AppError {
	return &AppError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an event cannot be found.
func NewNotFound(id string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("event not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *AppError {
	return &AppError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewLimitReached creates a 403 error when the extraction service refuses
// further requests for this account.
func NewLimitReached() *AppError {
	return &AppError{
		Code:    ErrLimitReached,
		Status:  403,
		Message: "extraction limit reached",
	}
}

// NewExtractionFailed creates a 502 error for a failed call to the
// extraction service.
func NewExtractionFailed(status int, err error) *AppError {
	msg := "extraction service unavailable"
	if err != nil {
		msg = err.Error()
	}
	e := &AppError{
		Code:    ErrExtractionFailed,
		Status:  502,
		Message: msg,
		cause:   err,
	}
	if status != 0 {
		e.Details = map[string]any{"upstream_status": status}
	}
	return e
}

// NewCancelled creates a 499 error for an operation abandoned by its caller.
func NewCancelled(err error) *AppError {
	return &AppError{
		Code:    ErrCancelled,
		Status:  499,
		Message: "operation cancelled",
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *AppError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// FromContext maps a context error to CANCELLED, or returns nil.
func FromContext(err error) *AppError {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewCancelled(err)
	}
	return nil
}

// Is checks if an error is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
