package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"instaorbit/internal/observability"
)

type callEvent struct {
	providerID string
	success    bool
	at         time.Time
}

// Tracker records provider call outcomes asynchronously.
// RecordCall never blocks and never fails; store errors are logged by the
// background worker and otherwise ignored.
type Tracker struct {
	store  Store
	config Config
	buffer chan callEvent
	done   chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time

	mu     sync.RWMutex // held for reading by RecordCall sends, for writing by Close
	closed bool
}

// NewTracker creates a Tracker and starts its background worker.
func NewTracker(store Store, cfg Config) *Tracker {
	defaults := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	t := &Tracker{
		store:  store,
		config: cfg,
		buffer: make(chan callEvent, cfg.BufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	t.wg.Add(1)
	go t.run()

	return t
}

// RecordCall queues one outcome for providerID. If the buffer is full or the
// tracker is closed, the outcome is dropped and a warning is logged.
func (t *Tracker) RecordCall(providerID string, success bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.buffer <- callEvent{providerID: providerID, success: success, at: t.now()}:
	default:
		observability.UsageDropped.Inc()
		slog.Warn("usage buffer full, dropping call outcome",
			"provider", providerID,
			"success", success,
		)
	}
}

// Usage returns the current records. Every id in known gets a record, zeroed
// when the store has none. A store failure is logged and yields zeroed records.
func (t *Tracker) Usage(ctx context.Context, known ...string) *Report {
	records, err := t.store.Get(ctx)
	if err != nil {
		slog.Error("failed to read usage", "error", err)
		records = nil
	}

	report := &Report{
		Providers: make(map[string]*ProviderRecord, len(known)+len(records)),
		CreatedAt: t.now().UTC(),
	}
	for id, rec := range records {
		report.Providers[id] = rec
	}
	for _, id := range known {
		if _, ok := report.Providers[id]; !ok {
			report.Providers[id] = NewProviderRecord()
		}
	}
	for _, rec := range report.Providers {
		report.TotalAPICalls += rec.TotalCalls
	}
	return report
}

// Reset clears every record. Unlike RecordCall, errors are returned because
// the admin asked for it explicitly.
func (t *Tracker) Reset(ctx context.Context) error {
	return t.store.Reset(ctx)
}

// Config returns the tracker configuration
func (t *Tracker) Config() Config {
	return t.config
}

// Close stops accepting outcomes, applies everything already queued and closes the store.
// Close is idempotent.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	t.wg.Wait()

	return t.store.Close()
}

func (t *Tracker) run() {
	defer t.wg.Done()

	for {
		select {
		case ev := <-t.buffer:
			t.apply(ev)

		case <-t.done:
			// closed is already set, so nothing else will be sent
			close(t.buffer)
			for ev := range t.buffer {
				t.apply(ev)
			}
			return
		}
	}
}

func (t *Tracker) apply(ev callEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), t.config.WriteTimeout)
	defer cancel()

	if err := t.store.Increment(ctx, ev.providerID, ev.success, ev.at); err != nil {
		slog.Error("failed to record provider call",
			"provider", ev.providerID,
			"success", ev.success,
			"error", err,
		)
	}
}
