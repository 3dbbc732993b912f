package errors

import (
	"fmt"
	"net/http"
)

// TransportDetails describes a failed wire exchange
type TransportDetails struct {
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
}

// NewHTTPStatusError builds the single error surfaced for a non-2xx response.
// The message carries both the HTTP status and the response body text.
func NewHTTPStatusError(method, path string, statusCode int, body string) *AppError {
	msg := fmt.Sprintf("HTTP error! status: %d, message: %s", statusCode, body)
	return NewTransportError(msg, nil).WithDetails(TransportDetails{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Body:       body,
	})
}

// FromError converts a standard error to an AppError
// If the error is already an AppError (or wraps one), it is returned as-is
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return NewError(
		http.StatusInternalServerError,
		CodeInternal,
		fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
	).WithCause(err)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns "UNKNOWN_ERROR" if not an AppError
func GetErrorCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorMessage extracts the error message, returns original error message if not an AppError
func GetErrorMessage(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
