// Package upstream provides the base HTTP client shared by provider adapters with:
// - query-encoded GET requests with RapidAPI auth headers
// - optional retries with exponential backoff
// - standardized error parsing
// - circuit breaking
// - brotli/gzip body decoding
package upstream

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"instaorbit/internal/core"
	"instaorbit/internal/httpclient"
)

// maxBodyBytes caps how much of an upstream body is read into memory.
const maxBodyBytes = 8 << 20

// Config holds configuration for the upstream client
type Config struct {
	// ProviderName identifies the provider in errors (the provider id)
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// Retry configuration. MaxRetries of 0 means a single attempt.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64

	// Circuit breaker configuration; nil disables it
	CircuitBreaker *CircuitBreakerConfig
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close an open circuit
	SuccessThreshold int
	// Timeout is how long to wait before attempting to close an open circuit
	Timeout time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		MaxRetries:     0,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
		BackoffFactor:  2.0,
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for upstream providers
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
	breaker      *breaker
}

// New creates a new client with the given configuration
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewProviderClient(), config, headerSetter)
}

// NewWithHTTPClient creates a new client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}

	if config.CircuitBreaker != nil {
		c.breaker = newBreaker(config.ProviderName, *config.CircuitBreaker)
	}

	return c
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetMaxRetries updates the retry count. Negative values mean no retries.
func (c *Client) SetMaxRetries(n int) {
	if n < 0 {
		n = 0
	}
	c.config.MaxRetries = n
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	// Query is encoded with url.Values.Encode, so every value is percent-escaped.
	Query   url.Values
	Headers map[string]string
}

// Response represents a completed upstream exchange
type Response struct {
	StatusCode     int
	Status         string
	Header         http.Header
	Body           []byte
	URL            string
	RequestHeaders http.Header
	Duration       time.Duration
}

// Do executes a request with retries and circuit breaking, then unmarshals the response
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request with retries and circuit breaking, returning the raw response.
// Any non-2xx status becomes a provider error.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	if c.breaker != nil && !c.breaker.allow() {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusServiceUnavailable,
			"circuit breaker is open - provider temporarily unavailable", nil)
	}

	var lastErr error
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, c.contextError(ctx.Err())
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			lastErr = err
			c.recordFailure(ctx)
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		if c.isRetryable(resp.StatusCode) {
			c.recordFailure(ctx)
			lastErr = core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if resp.StatusCode >= 500 {
				c.recordFailure(ctx)
			}
			return nil, core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
		}

		if c.breaker != nil {
			c.breaker.success()
		}
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "request failed after retries", nil)
}

// recordFailure counts a failed attempt against the breaker unless the caller
// canceled it. Deadline expiry still counts.
func (c *Client) recordFailure(ctx context.Context) {
	if c.breaker == nil || errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	c.breaker.failure()
}

// Probe executes exactly one request, bypassing retries and the circuit breaker,
// and returns the response whatever its status.
func (c *Client) Probe(ctx context.Context, req Request) (*Response, error) {
	return c.doRequest(ctx, req)
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx.Err())
		}
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := readBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx.Err())
		}
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode:     resp.StatusCode,
		Status:         resp.Status,
		Header:         resp.Header,
		Body:           body,
		URL:            httpReq.URL.String(),
		RequestHeaders: httpReq.Header.Clone(),
		Duration:       time.Since(start),
	}, nil
}

// contextError converts a context failure into a provider error.
func (c *Client) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewProviderError(c.config.ProviderName, http.StatusGatewayTimeout, "request timed out", err)
	}
	return core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "request canceled", err)
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.config.BaseURL + req.Endpoint
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, http.StatusBadGateway, "failed to create request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "br, gzip")

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// readBody reads at most maxBodyBytes, decoding brotli and gzip content encodings.
// Setting Accept-Encoding ourselves disables the transport's transparent gzip.
func readBody(resp *http.Response) ([]byte, error) {
	r, err := DecodedBody(resp)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

// DecodedBody returns resp.Body unwrapped from its brotli or gzip Content-Encoding.
// Closing the returned reader does not close resp.Body.
func DecodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// calculateBackoff calculates the backoff duration for a given attempt
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable returns true if the status code indicates a retryable error
func (c *Client) isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}

// MaskedHeaders flattens headers for diagnostics, hiding credential values.
func MaskedHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key := range h {
		value := h.Get(key)
		lower := strings.ToLower(key)
		if strings.Contains(lower, "key") || lower == "authorization" {
			value = mask(value)
		}
		out[lower] = value
	}
	return out
}

func mask(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
