// Package httpclient builds the shared *http.Client instances used for upstream
// provider calls and for the media proxy.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Config sizes the connection pool and bounds each phase of a request.
type Config struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Timeout caps a whole exchange including the body. Zero disables it.
	// Provider calls are normally bounded earlier by their request context.
	Timeout time.Duration

	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// EnvDuration reads a duration from an environment variable, returning def if unset or invalid.
// Accepts plain integers (seconds) or Go duration strings ("10s", "1m30s").
func EnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return def
}

// ProviderConfig is the profile for RapidAPI calls. HTTP_TIMEOUT and
// HTTP_RESPONSE_HEADER_TIMEOUT override the outer bounds.
func ProviderConfig() Config {
	return Config{
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		Timeout:               EnvDuration("HTTP_TIMEOUT", time.Minute),
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: EnvDuration("HTTP_RESPONSE_HEADER_TIMEOUT", time.Minute),
	}
}

// MediaConfig is the profile for streaming CDN bodies through the proxy.
// Video bodies can be large, so only connection setup and the first
// response byte are bounded.
func MediaConfig() Config {
	cfg := ProviderConfig()
	cfg.Timeout = 0
	cfg.ResponseHeaderTimeout = 30 * time.Second
	return cfg
}

// New builds a client from cfg.
func New(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// NewProviderClient returns a client with the provider profile.
func NewProviderClient() *http.Client { return New(ProviderConfig()) }

// NewMediaClient returns a client with the media profile.
func NewMediaClient() *http.Client { return New(MediaConfig()) }
