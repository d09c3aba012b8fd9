// Package core defines the core interfaces and types for the media resolver.
package core

import "context"

// Provider resolves an Instagram URL through one upstream API.
type Provider interface {
	// ID is the stable provider identity used for usage accounting (the upstream host).
	ID() string

	// Name is a human-readable label.
	Name() string

	// Resolve fetches and normalizes media for targetURL. Failures are *GatewayError
	// values of type provider_error.
	Resolve(ctx context.Context, targetURL string) (*ResolvedMedia, error)

	// Probe performs the raw upstream call and returns the exchange without
	// normalizing it. A non-2xx upstream status is not an error here.
	Probe(ctx context.Context, targetURL string) (*Exchange, error)
}

// Resolution is the outcome of a full resolution flow.
type Resolution struct {
	Media    *ResolvedMedia `json:"data"`
	Provider string         `json:"provider"`
	Cached   bool           `json:"cached"`
}

// Resolver is the fan-out resolution entrypoint used by HTTP handlers.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*Resolution, error)
}
