package core

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeProvider indicates a single upstream provider failure (5xx)
	ErrorTypeProvider ErrorType = "provider_error"
	// ErrorTypeRateLimit indicates a rate limit error (429)
	ErrorTypeRateLimit ErrorType = "rate_limit_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates the media could not be resolved by any provider (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeInternal indicates an unexpected server fault (500)
	ErrorTypeInternal ErrorType = "internal_error"
)

var (
	// ErrInvalidURL is matched by errors.Is for every rejected input URL.
	ErrInvalidURL = errors.New("invalid instagram url")
	// ErrAllProvidersFailed is matched by errors.Is when no provider could resolve a URL.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// User-facing messages. They never include upstream details.
const (
	MsgInvalidURL      = "Invalid Instagram URL. Please provide a valid Instagram post, reel, or story URL."
	MsgURLRequired     = "URL is required"
	MsgMediaNotFound   = "Failed to fetch Instagram media. The post might be private or deleted."
	MsgInternalFailure = "Internal server error. Please try again later."
)

// GatewayError is the base error type for all resolver errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
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
	case ErrorTypeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the client response body.
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   e.Message,
		"type":    e.Type,
	}
}

// NewProviderError creates a new provider error (one upstream call failed)
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// NewRateLimitError creates a new rate limit error (429)
func NewRateLimitError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Provider:   provider,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewInvalidURLError creates the error returned for input that fails URL validation.
func NewInvalidURLError() *GatewayError {
	return NewInvalidRequestError(MsgInvalidURL, ErrInvalidURL)
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(provider string, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// AllProvidersFailedError aggregates the failure of every provider for one URL.
// Failures is for logs and the admin harness only.
type AllProvidersFailedError struct {
	Failures map[string]error
}

func (e *AllProvidersFailedError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failures[id]))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrAllProvidersFailed.
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Gateway converts the aggregate into the generic client-facing error.
func (e *AllProvidersFailedError) Gateway() *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeNotFound,
		Message:    MsgMediaNotFound,
		StatusCode: http.StatusNotFound,
		Err:        e,
	}
}

// ParseProviderError converts a non-2xx upstream response into a provider error.
// The status code is kept only as detail: every upstream failure maps to 502 so
// callers never see an upstream 401/403 as their own.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := upstreamMessage(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	message = fmt.Sprintf("upstream returned %d: %s", statusCode, message)

	switch {
	case statusCode == http.StatusTooManyRequests:
		err := NewRateLimitError(provider, message)
		err.StatusCode = http.StatusBadGateway
		err.Err = originalErr
		return err
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err := NewAuthenticationError(provider, message)
		err.StatusCode = http.StatusBadGateway
		err.Err = originalErr
		return err
	default:
		return NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
}

// upstreamMessage extracts a readable message from the shapes RapidAPI backends use.
func upstreamMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return truncate(strings.TrimSpace(string(body)), 200)
	}
	for _, path := range []string{"message", "error.message", "error", "detail"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.String() != "" {
			return truncate(r.String(), 200)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
