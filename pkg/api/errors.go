package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	ErrorTypeBackend        ErrorType = "backend_error"
	ErrorTypeUnavailable    ErrorType = "unavailable_error"
	ErrorTypeServerError    ErrorType = "server_error"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level
// error response body, and as the payload of a terminal SSE error frame.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewAuthenticationError creates an APIError for missing or unusable credentials.
func NewAuthenticationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthentication,
		Message: message,
	}
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewBackendError creates an APIError for a non-retryable backend rejection.
func NewBackendError(code, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeBackend,
		Code:    code,
		Message: message,
	}
}

// NewUnavailableError creates an APIError for exhausted backend endpoints.
func NewUnavailableError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnavailable,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}
