// Package core provides shared types and interfaces for the NFT data gateway.
package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeUpstream indicates an upstream service error (5xx)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeRateLimit indicates a rate limit error (429 or local quota)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401/403)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
)

// ServiceError is the base error type for all gateway errors
type ServiceError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Service    string    `json:"service,omitempty"`
	// RetryAfter carries the wait hint for rate limit errors.
	RetryAfter time.Duration `json:"-"`
	// Attempts records how many times the operation ran before failing.
	Attempts int `json:"-"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Service, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error represents a transient condition
// that a retry policy may re-attempt: 429 and upstream 5xx.
func (e *ServiceError) Retryable() bool {
	return e.Type == ErrorTypeRateLimit || e.Type == ErrorTypeUpstream
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *ServiceError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *ServiceError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewUpstreamError creates a new upstream error (5xx)
func NewUpstreamError(service string, statusCode int, message string, err error) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: statusCode,
		Service:    service,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429) with a wait hint
func NewRateLimitError(service string, message string, retryAfter time.Duration) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Service:    service,
		RetryAfter: retryAfter,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *ServiceError {
	return NewInvalidRequestErrorWithStatus(http.StatusBadRequest, message, err)
}

// NewInvalidRequestErrorWithStatus creates a new invalid request error with a specific status code
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(service string, message string) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Service:    service,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ParseUpstreamError parses an error response from an upstream service and
// returns an appropriate ServiceError
func ParseUpstreamError(service string, statusCode int, body []byte, originalErr error) *ServiceError {
	// Reservoir and CoinGecko both return {"error": "...", "message": "..."}
	// shaped bodies; fall back to the raw body when neither field parses.
	var errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errorResponse); err == nil {
		if errorResponse.Message != "" {
			message = errorResponse.Message
		} else if errorResponse.Error != "" {
			message = errorResponse.Error
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewAuthenticationError(service, message)
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(service, message, 0)
	case statusCode == http.StatusNotFound:
		err := NewNotFoundError(message)
		err.Service = service
		return err
	case statusCode >= 400 && statusCode < 500:
		// Client errors from upstream - preserve both service info and original status code
		err := NewInvalidRequestErrorWithStatus(statusCode, message, originalErr)
		err.Service = service
		return err
	default:
		return NewUpstreamError(service, statusCode, message, originalErr)
	}
}
