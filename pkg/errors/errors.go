package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes of the chat error taxonomy
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
	CodeTransport       = "TRANSPORT_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrValidation      = &AppError{StatusCode: http.StatusBadRequest, Code: CodeValidation}
	ErrConflict        = &AppError{StatusCode: http.StatusConflict, Code: CodeConflict}
	ErrNotFound        = &AppError{StatusCode: http.StatusNotFound, Code: CodeNotFound}
	ErrTransport       = &AppError{StatusCode: http.StatusBadGateway, Code: CodeTransport}
	ErrUnauthenticated = &AppError{StatusCode: http.StatusUnauthorized, Code: CodeUnauthenticated}
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Cause      error  `json:"-"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause records the underlying error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewValidationError reports input rejected before any state mutation
func NewValidationError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeValidation, message)
}

// NewBadRequestError creates a 400 Bad Request error with a custom code
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewUnauthenticatedError is the 401 raised when no signed-in identity is available
func NewUnauthenticatedError(message string) *AppError {
	return NewError(http.StatusUnauthorized, CodeUnauthenticated, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *AppError {
	return NewError(http.StatusConflict, CodeConflict, message)
}

// NewTransportError wraps a network, timeout or non-success wire outcome
func NewTransportError(message string, cause error) *AppError {
	return NewError(http.StatusBadGateway, CodeTransport, message).WithCause(cause)
}

// NewInternalServerError creates a 500 Internal Server Error carrying a stack trace
func NewInternalServerError(code string, message string) *AppError {
	e := NewError(http.StatusInternalServerError, code, message)
	e.Stack = string(debug.Stack())
	return e
}

// Is checks whether err is, or wraps, an AppError with the target's code
func Is(err error, target *AppError) bool {
	return stderrors.Is(err, target)
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
