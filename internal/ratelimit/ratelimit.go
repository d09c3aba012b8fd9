// Package ratelimit provides a per-client sliding-window limiter for the public API.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"instaorbit/config"
)

// Response headers set on every limited route.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Defaults used when the configuration leaves a value unset.
const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 20
)

// MsgTooManyRequests is returned with a 429.
const MsgTooManyRequests = "Too many requests. Please try again later."

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the current window ends for this client.
	Reset time.Time
}

// Limiter counts request timestamps per key inside a sliding window.
// Idle keys are pruned at most once per window, during Allow.
type Limiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastPrune time.Time
	now       func() time.Time
}

// New creates a Limiter allowing max requests per window for each key.
func New(window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	return &Limiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// NewFromConfig creates a Limiter from the rate limit settings.
func NewFromConfig(cfg config.RateLimitConfig) *Limiter {
	return New(cfg.Window, cfg.MaxRequests)
}

// Allow records a request for key if it fits in the window.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybePrune(now)

	recent := l.recent(l.hits[key], now)
	d := Decision{Limit: l.max, Reset: now.Add(l.window)}

	if len(recent) >= l.max {
		l.hits[key] = recent
		return d
	}

	recent = append(recent, now)
	l.hits[key] = recent
	d.Allowed = true
	d.Remaining = l.max - len(recent)
	return d
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// recent returns the timestamps still inside the window, reusing ts.
func (l *Limiter) recent(ts []time.Time, now time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	return kept
}

func (l *Limiter) maybePrune(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	l.lastPrune = now
	for key, ts := range l.hits {
		if kept := l.recent(ts, now); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

// Middleware limits requests per client IP as reported by echo's RealIP.
func Middleware(l *Limiter) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(l.window.Seconds())))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "anonymous"
			}
			d := l.Allow(ip)

			h := c.Response().Header()
			h.Set(HeaderLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
			h.Set(HeaderReset, strconv.FormatInt(int64(math.Ceil(float64(d.Reset.UnixMilli())/1000)), 10))

			if !d.Allowed {
				h.Set(HeaderRetryAfter, retryAfter)
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":      MsgTooManyRequests,
					"retryAfter": int(math.Ceil(l.window.Seconds())),
				})
			}
			return next(c)
		}
	}
}
