package upstream

import (
	"sync"
	"time"

	"instaorbit/internal/observability"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateHalfOpen
	stateOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateHalfOpen:
		return "half-open"
	case stateOpen:
		return "open"
	}
	return "unknown"
}

// breaker stops calls to a provider after FailureThreshold consecutive upstream
// failures. Once Timeout has passed since it opened, calls go through again in
// half-open state; SuccessThreshold successes close it and any failure reopens it.
//
// Calls abandoned by the caller, such as the loser of a provider race, say nothing
// about the provider's health and are not reported here.
type breaker struct {
	provider string
	cfg      CircuitBreakerConfig
	now      func() time.Time

	mu       sync.Mutex
	state    breakerState
	streak   int // consecutive failures while closed, successes while half-open
	openedAt time.Time
}

func newBreaker(provider string, cfg CircuitBreakerConfig) *breaker {
	b := &breaker{provider: provider, cfg: cfg, now: time.Now}
	b.publish()
	return b
}

// allow reports whether a call may be sent now.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateOpen {
		return true
	}
	if b.now().Sub(b.openedAt) < b.cfg.Timeout {
		return false
	}
	b.moveTo(stateHalfOpen)
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.streak = 0
	case stateHalfOpen:
		b.streak++
		if b.streak >= b.cfg.SuccessThreshold {
			b.moveTo(stateClosed)
		}
	}
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.streak++
		if b.streak >= b.cfg.FailureThreshold {
			b.open()
		}
	case stateHalfOpen:
		b.open()
	case stateOpen:
		// a call admitted before the trip finished late
		b.openedAt = b.now()
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) open() {
	b.openedAt = b.now()
	b.moveTo(stateOpen)
}

// moveTo must be called with mu held.
func (b *breaker) moveTo(s breakerState) {
	b.state = s
	b.streak = 0
	b.publish()
}

func (b *breaker) publish() {
	observability.CircuitState.WithLabelValues(b.provider).Set(float64(b.state))
}
