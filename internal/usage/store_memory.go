package usage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It is the default backend and
// the one used in tests; counters are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*ProviderRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*ProviderRecord)}
}

// Increment applies one outcome under the store lock.
func (s *MemoryStore) Increment(_ context.Context, providerID string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[providerID]
	if !ok {
		rec = NewProviderRecord()
		s.records[providerID] = rec
	}
	rec.apply(success, at)
	return nil
}

// Get returns deep copies of all records.
func (s *MemoryStore) Get(_ context.Context) (map[string]*ProviderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*ProviderRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec.clone()
	}
	return out, nil
}

// Reset deletes all records.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*ProviderRecord)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
