package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache implements Cache with an in-process map.
// Expired entries are evicted on the lookup that finds them; there is no sweeper.
// This is suitable for single-instance deployments.
type LocalCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewLocalCache creates an empty local cache.
func NewLocalCache(ttl time.Duration) *LocalCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LocalCache{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the entry for key if it is younger than the TTL.
func (c *LocalCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.now().Sub(entry.InsertedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, nil
	}
	return entry.clone(), nil
}

// Set stores a copy of entry. A zero InsertedAt is stamped with the current time.
func (c *LocalCache) Set(_ context.Context, key string, entry *Entry) error {
	if entry == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := entry.clone()
	if stored.InsertedAt.IsZero() {
		stored.InsertedAt = c.now()
	}
	c.entries[key] = stored
	return nil
}

// Len returns the number of held entries, expired ones included.
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close is a no-op for local cache.
func (c *LocalCache) Close() error {
	return nil
}
