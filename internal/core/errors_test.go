package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected int
	}{
		{"invalid url", NewInvalidURLError(), http.StatusBadRequest},
		{"provider", NewProviderError("p", 0, "boom", nil), http.StatusBadGateway},
		{"not found", NewNotFoundError("gone"), http.StatusNotFound},
		{"auth", NewAuthenticationError("", "nope"), http.StatusUnauthorized},
		{"rate limit", NewRateLimitError("", "slow down"), http.StatusTooManyRequests},
		{"internal by type", &GatewayError{Type: ErrorTypeInternal}, http.StatusInternalServerError},
		{"explicit status wins", &GatewayError{Type: ErrorTypeProvider, StatusCode: http.StatusGatewayTimeout}, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.HTTPStatusCode())
		})
	}
}

func TestInvalidURLError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewInvalidURLError())
	assert.True(t, errors.Is(err, ErrInvalidURL))

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, ErrorTypeInvalidRequest, gwErr.Type)
}

func TestAllProvidersFailedError(t *testing.T) {
	agg := &AllProvidersFailedError{Failures: map[string]error{
		"b.example": errors.New("timeout"),
		"a.example": errors.New("status 500"),
	}}

	assert.True(t, errors.Is(agg, ErrAllProvidersFailed))
	assert.Equal(t, "all providers failed: a.example: status 500; b.example: timeout", agg.Error())

	gw := agg.Gateway()
	assert.Equal(t, http.StatusNotFound, gw.HTTPStatusCode())
	assert.True(t, errors.Is(gw, ErrAllProvidersFailed))

	body := gw.ToJSON()
	assert.Equal(t, MsgMediaNotFound, body["error"])
	assert.NotContains(t, fmt.Sprint(body), "a.example")
}

func TestParseProviderError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectedType ErrorType
		contains     string
	}{
		{"json message", 500, `{"message":"Internal upstream failure"}`, ErrorTypeProvider, "Internal upstream failure"},
		{"nested error message", 400, `{"error":{"message":"bad url"}}`, ErrorTypeProvider, "bad url"},
		{"plain error string", 404, `{"error":"not found"}`, ErrorTypeProvider, "not found"},
		{"rate limited", 429, `{"message":"You have exceeded the rate limit"}`, ErrorTypeRateLimit, "exceeded"},
		{"forbidden", 403, `{"message":"You are not subscribed to this API."}`, ErrorTypeAuthentication, "not subscribed"},
		{"non json body", 502, `<html>Bad Gateway</html>`, ErrorTypeProvider, "Bad Gateway"},
		{"empty body", 503, ``, ErrorTypeProvider, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseProviderError("videos4", tt.status, []byte(tt.body), nil)
			assert.Equal(t, tt.expectedType, err.Type)
			assert.Equal(t, "videos4", err.Provider)
			assert.Equal(t, http.StatusBadGateway, err.HTTPStatusCode())
			assert.Contains(t, err.Message, tt.contains)
		})
	}
}

func TestParseProviderError_TruncatesLongBodies(t *testing.T) {
	body := strings.Repeat("x", 1000)
	err := ParseProviderError("p", 500, []byte(body), nil)
	assert.Less(t, len(err.Message), 300)
}
