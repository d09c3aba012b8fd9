// Package providers provides a factory for creating provider instances and the
// shared plumbing every adapter runs behind.
package providers

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"instaorbit/config"
	"instaorbit/internal/core"
)

// ProviderOptions carries construction settings shared by all adapters.
type ProviderOptions struct {
	// HTTPClient is used for upstream calls; nil selects the default client.
	HTTPClient *http.Client
	// MaxRetries is the in-call retry count for retryable upstream statuses.
	MaxRetries int
}

// Builder creates a provider from its credential and options.
type Builder func(apiKey string, opts ProviderOptions) core.Provider

// Registration is what an adapter package exports so it can be added to a factory.
type Registration struct {
	Type string
	New  Builder
}

// ProviderFactory creates adapters by configured type.
type ProviderFactory struct {
	mu       sync.RWMutex
	builders map[string]Builder
	options  ProviderOptions
}

// NewProviderFactory creates an empty factory.
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{builders: make(map[string]Builder)}
}

// Add registers an adapter package's Registration.
func (f *ProviderFactory) Add(reg Registration) {
	f.Register(reg.Type, reg.New)
}

// Register registers a builder for a provider type, replacing any previous one.
func (f *ProviderFactory) Register(providerType string, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[providerType] = builder
}

// SetOptions sets the options passed to every subsequently created provider.
func (f *ProviderFactory) SetOptions(opts ProviderOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options = opts
}

// Create instantiates a provider based on configuration.
func (f *ProviderFactory) Create(cfg config.ProviderConfig) (core.Provider, error) {
	f.mu.RLock()
	builder, ok := f.builders[cfg.Type]
	opts := f.options
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider type %s: api key is required", cfg.Type)
	}

	p := builder(cfg.APIKey, opts)
	if cfg.BaseURL != "" {
		if setter, ok := p.(interface{ SetBaseURL(string) }); ok {
			setter.SetBaseURL(cfg.BaseURL)
		}
	}
	return p, nil
}

// ListRegistered returns the registered provider types in sorted order.
func (f *ProviderFactory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
