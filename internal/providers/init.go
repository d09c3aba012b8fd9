package providers

import (
	"errors"
	"fmt"
	"log/slog"

	"instaorbit/config"
)

// Set is the ordered collection of configured providers, each wrapped in Tracked.
type Set struct {
	providers []*Tracked
}

// NewSet builds a Set from already wrapped providers, keeping their order.
func NewSet(providers ...*Tracked) *Set {
	return &Set{providers: providers}
}

// All returns the providers in configuration order.
func (s *Set) All() []*Tracked {
	out := make([]*Tracked, len(s.providers))
	copy(out, s.providers)
	return out
}

// IDs returns the provider identities in configuration order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.providers))
	for i, p := range s.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Lookup finds a provider by identity or by configured type.
func (s *Set) Lookup(key string) (*Tracked, bool) {
	for _, p := range s.providers {
		if p.ID() == key || p.Type() == key {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of providers.
func (s *Set) Len() int { return len(s.providers) }

// Init creates every configured provider through the factory and wraps it with the
// resolver's per-call timeout and the usage recorder. Providers that fail to build are
// logged and skipped; Init fails only when none could be built.
func Init(cfg *config.Config, factory *ProviderFactory, recorder UsageRecorder) (*Set, error) {
	if factory == nil {
		return nil, errors.New("provider factory is required")
	}

	factory.SetOptions(ProviderOptions{MaxRetries: cfg.Resolver.MaxRetries})

	set := &Set{}
	for _, name := range cfg.ProviderNames() {
		pCfg := cfg.Providers[name]
		p, err := factory.Create(pCfg)
		if err != nil {
			slog.Error("failed to initialize provider", "name", name, "type", pCfg.Type, "error", err)
			continue
		}
		set.providers = append(set.providers, NewTracked(p, pCfg.Type, cfg.Resolver.ProviderTimeout, recorder))
		slog.Info("provider initialized", "name", name, "type", pCfg.Type, "provider", p.ID())
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("no providers were successfully initialized")
	}
	return set, nil
}
