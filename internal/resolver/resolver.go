// Package resolver races the configured providers for a submitted Instagram URL.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"instaorbit/internal/cache"
	"instaorbit/internal/core"
	"instaorbit/internal/observability"
	"instaorbit/internal/providers"
	"instaorbit/internal/validation"
)

// Resolver implements core.Resolver over a set of tracked providers and a cache.
type Resolver struct {
	providers []core.Provider
	cache     cache.Cache
}

var _ core.Resolver = (*Resolver)(nil)

// New creates a Resolver. Providers are raced in the given order; a nil cache
// disables memoization.
func New(ps []core.Provider, c cache.Cache) *Resolver {
	owned := make([]core.Provider, len(ps))
	copy(owned, ps)
	return &Resolver{providers: owned, cache: c}
}

// NewFromSet creates a Resolver over every provider in set.
func NewFromSet(set *providers.Set, c cache.Cache) *Resolver {
	tracked := set.All()
	ps := make([]core.Provider, 0, len(tracked))
	for _, p := range tracked {
		ps = append(ps, p)
	}
	return New(ps, c)
}

// Providers returns the provider ids in race order.
func (r *Resolver) Providers() []string {
	ids := make([]string, len(r.providers))
	for i, p := range r.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Resolve validates rawURL, serves it from the cache when possible and otherwise
// returns the first provider success. When every provider fails the error is a
// *core.AllProvidersFailedError.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*core.Resolution, error) {
	if rawURL == "" {
		observability.Resolutions.WithLabelValues("invalid").Inc()
		return nil, core.NewInvalidRequestError(core.MsgURLRequired, core.ErrInvalidURL)
	}
	if !validation.IsValidInstagramURL(rawURL) {
		observability.Resolutions.WithLabelValues("invalid").Inc()
		return nil, core.NewInvalidURLError()
	}

	if res := r.lookup(ctx, rawURL); res != nil {
		observability.Resolutions.WithLabelValues("cached").Inc()
		return res, nil
	}

	tasks := make([]providers.Task[*core.ResolvedMedia], len(r.providers))
	for i, p := range r.providers {
		tasks[i] = func(ctx context.Context) (*core.ResolvedMedia, error) {
			return p.Resolve(ctx, rawURL)
		}
	}

	start := time.Now()
	idx, media, errs := providers.FirstSuccess(ctx, tasks)
	if idx < 0 {
		failures := make(map[string]error, len(errs))
		for i, err := range errs {
			failures[r.providers[i].ID()] = err
		}
		allFailed := &core.AllProvidersFailedError{Failures: failures}

		observability.Resolutions.WithLabelValues("failed").Inc()
		slog.Warn("all providers failed",
			"url", validation.Sanitize(rawURL),
			"request_id", core.GetRequestID(ctx),
			"duration", time.Since(start),
			"error", allFailed,
		)
		return nil, allFailed
	}

	winner := r.providers[idx].ID()
	observability.Resolutions.WithLabelValues("resolved").Inc()
	slog.Info("media resolved",
		"provider", winner,
		"url", validation.Sanitize(rawURL),
		"request_id", core.GetRequestID(ctx),
		"items", media.ItemCount,
		"duration", time.Since(start),
	)

	r.store(ctx, rawURL, media, winner)
	return &core.Resolution{Media: media, Provider: winner}, nil
}

func (r *Resolver) lookup(ctx context.Context, rawURL string) *core.Resolution {
	if r.cache == nil {
		return nil
	}

	entry, err := r.cache.Get(ctx, rawURL)
	if err != nil {
		slog.Error("cache lookup failed", "request_id", core.GetRequestID(ctx), "error", err)
	}
	if entry == nil || entry.Media == nil {
		observability.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	observability.CacheLookups.WithLabelValues("hit").Inc()
	return &core.Resolution{Media: entry.Media, Provider: entry.Provider, Cached: true}
}

func (r *Resolver) store(ctx context.Context, rawURL string, media *core.ResolvedMedia, provider string) {
	if r.cache == nil {
		return
	}
	// the cache keeps its own copy; media is handed to the caller
	err := r.cache.Set(ctx, rawURL, &cache.Entry{Media: media.Clone(), Provider: provider})
	if err != nil {
		slog.Error("cache store failed", "provider", provider, "request_id", core.GetRequestID(ctx), "error", err)
	}
}
