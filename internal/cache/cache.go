// Package cache memoizes successful resolutions keyed by the submitted URL.
// Supports a local in-process map and Redis for multi-instance deployments.
package cache

import (
	"context"
	"fmt"
	"time"

	"instaorbit/config"
	"instaorbit/internal/core"
)

// Cache type constants.
const (
	TypeLocal = "local"
	TypeRedis = "redis"
)

// DefaultTTL is the validity window of an entry.
const DefaultTTL = time.Hour

// Entry is one cached resolution.
type Entry struct {
	Media      *core.ResolvedMedia `json:"media"`
	Provider   string              `json:"provider"`
	InsertedAt time.Time           `json:"insertedAt"`
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Media = e.Media.Clone()
	return &c
}

// Cache defines the interface for resolution cache storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the entry for key, or nil, nil when absent or expired.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key, overwriting any previous value.
	Set(ctx context.Context, key string, entry *Entry) error

	// Close releases any resources held by the cache.
	Close() error
}

// New creates the cache selected by cfg.
func New(cfg config.CacheConfig) (Cache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalCache(ttl), nil
	case TypeRedis:
		return NewRedisCache(RedisConfig{
			URL:    cfg.RedisURL,
			Prefix: cfg.RedisPrefix,
			TTL:    ttl,
		})
	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: local, redis)", cfg.Type)
	}
}
