// Package usage tracks per-provider call counters for the admin dashboard.
// Increments are queued and applied asynchronously so bookkeeping never adds
// latency to a resolution; every backend applies them as one atomic upsert.
package usage

import (
	"context"
	"encoding/json"
	"time"
)

// Store defines the interface for usage storage backends.
// Implementations must be safe for concurrent use, including across processes
// sharing the same backend: Increment must never read-modify-write.
type Store interface {
	// Increment applies one call outcome to the provider's record, creating it if needed.
	Increment(ctx context.Context, providerID string, success bool, at time.Time) error

	// Get returns every stored record keyed by provider id.
	Get(ctx context.Context) (map[string]*ProviderRecord, error)

	// Reset deletes all records.
	Reset(ctx context.Context) error

	// Close releases resources owned by the store (not the shared connection).
	Close() error
}

// ProviderRecord holds the accumulated counters for one provider.
type ProviderRecord struct {
	TotalCalls   int64            `json:"totalCalls" bson:"totalCalls"`
	SuccessCalls int64            `json:"successCalls" bson:"successCalls"`
	FailedCalls  int64            `json:"failedCalls" bson:"failedCalls"`
	LastCallAt   *time.Time       `json:"lastCallAt" bson:"lastCallAt,omitempty"`
	DailyStats   map[string]int64 `json:"dailyStats" bson:"dailyStats,omitempty"`
}

// NewProviderRecord returns a zeroed record.
func NewProviderRecord() *ProviderRecord {
	return &ProviderRecord{DailyStats: map[string]int64{}}
}

// apply adds one call to the record in memory.
func (r *ProviderRecord) apply(success bool, at time.Time) {
	r.TotalCalls++
	if success {
		r.SuccessCalls++
	} else {
		r.FailedCalls++
	}
	if r.DailyStats == nil {
		r.DailyStats = map[string]int64{}
	}
	r.DailyStats[DayKey(at)]++
	if r.LastCallAt == nil || at.After(*r.LastCallAt) {
		ts := at.UTC()
		r.LastCallAt = &ts
	}
}

func (r *ProviderRecord) clone() *ProviderRecord {
	c := *r
	c.DailyStats = make(map[string]int64, len(r.DailyStats))
	for k, v := range r.DailyStats {
		c.DailyStats[k] = v
	}
	if r.LastCallAt != nil {
		ts := *r.LastCallAt
		c.LastCallAt = &ts
	}
	return &c
}

// DayKey returns the UTC calendar day used as the dailyStats key.
func DayKey(at time.Time) string {
	return at.UTC().Format(time.DateOnly)
}

// Report is a usage snapshot for the admin API.
type Report struct {
	Providers     map[string]*ProviderRecord
	TotalAPICalls int64
	CreatedAt     time.Time
}

// MarshalJSON flattens provider records next to the totals, keyed by provider id:
// {"<provider>": {...}, "totalApiCalls": n, "createdAt": "..."}.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Providers)+2)
	for id, rec := range r.Providers {
		out[id] = rec
	}
	out["totalApiCalls"] = r.TotalAPICalls
	out["createdAt"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// Config holds usage tracking configuration
type Config struct {
	// BufferSize is the number of increments that can wait for the store
	BufferSize int

	// WriteTimeout bounds a single store increment
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}
