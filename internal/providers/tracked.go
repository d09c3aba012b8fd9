package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"instaorbit/internal/core"
	"instaorbit/internal/observability"
)

// UsageRecorder receives the outcome of every adapter call.
// Implementations must not block.
type UsageRecorder interface {
	RecordCall(providerID string, success bool)
}

// Tracked wraps an adapter with a per-call deadline, usage accounting and metrics.
// Each Resolve reports exactly one outcome to the recorder; Probe reports nothing.
type Tracked struct {
	inner        core.Provider
	providerType string
	timeout      time.Duration
	recorder     UsageRecorder
}

var _ core.Provider = (*Tracked)(nil)

// NewTracked wraps p. A nil recorder disables usage accounting; a non-positive
// timeout leaves the caller's deadline as the only bound.
func NewTracked(p core.Provider, providerType string, timeout time.Duration, recorder UsageRecorder) *Tracked {
	return &Tracked{
		inner:        p,
		providerType: providerType,
		timeout:      timeout,
		recorder:     recorder,
	}
}

// ID returns the wrapped provider's identity.
func (t *Tracked) ID() string { return t.inner.ID() }

// Name returns the wrapped provider's display name.
func (t *Tracked) Name() string { return t.inner.Name() }

// Type returns the configured provider type (v2scraper, videos4).
func (t *Tracked) Type() string { return t.providerType }

// Resolve calls the adapter under the per-call timeout and records the outcome.
func (t *Tracked) Resolve(ctx context.Context, targetURL string) (*core.ResolvedMedia, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	media, err := t.inner.Resolve(ctx, targetURL)
	if err == nil && media == nil {
		err = core.NewProviderError(t.ID(), http.StatusBadGateway, "provider returned no media", nil)
	}
	if err != nil {
		err = t.normalizeError(ctx, err)
	}
	elapsed := time.Since(start)

	success := err == nil
	if t.recorder != nil {
		t.recorder.RecordCall(t.ID(), success)
	}
	observability.ObserveProvider(t.ID(), outcomeLabel(err), elapsed)

	if err != nil {
		slog.Debug("provider call failed",
			"provider", t.ID(),
			"request_id", core.GetRequestID(ctx),
			"duration", elapsed,
			"error", err,
		)
		return nil, err
	}
	return media, nil
}

// Probe performs the raw diagnostic call under the same deadline.
func (t *Tracked) Probe(ctx context.Context, targetURL string) (*core.Exchange, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	ex, err := t.inner.Probe(ctx, targetURL)
	if err != nil {
		return nil, t.normalizeError(ctx, err)
	}
	return ex, nil
}

func (t *Tracked) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// normalizeError guarantees a *core.GatewayError tagged with this provider.
func (t *Tracked) normalizeError(ctx context.Context, err error) error {
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) {
		if gwErr.Provider == "" {
			gwErr.Provider = t.ID()
		}
		return gwErr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewProviderError(t.ID(), http.StatusGatewayTimeout, "request timed out", err)
	}
	return core.NewProviderError(t.ID(), http.StatusBadGateway, err.Error(), err)
}

// outcomeLabel is the status label used for provider metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
