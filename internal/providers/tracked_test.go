package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instaorbit/internal/core"
)

// stubProvider is a test implementation of core.Provider
type stubProvider struct {
	id        string
	resolveFn func(ctx context.Context, targetURL string) (*core.ResolvedMedia, error)
	probeFn   func(ctx context.Context, targetURL string) (*core.Exchange, error)
}

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Name() string { return "Stub " + s.id }

func (s *stubProvider) Resolve(ctx context.Context, targetURL string) (*core.ResolvedMedia, error) {
	return s.resolveFn(ctx, targetURL)
}

func (s *stubProvider) Probe(ctx context.Context, targetURL string) (*core.Exchange, error) {
	if s.probeFn == nil {
		return &core.Exchange{ProviderID: s.id}, nil
	}
	return s.probeFn(ctx, targetURL)
}

type call struct {
	provider string
	success  bool
}

type recorderSpy struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorderSpy) RecordCall(providerID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{providerID, success})
}

func (r *recorderSpy) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func sampleMedia() *core.ResolvedMedia {
	return core.NewResolvedMedia([]core.MediaItem{{Kind: core.MediaKindVideo, SourceURL: "https://cdn/v.mp4"}}, "", "", "")
}

func TestTracked_RecordsSuccessOnce(t *testing.T) {
	spy := &recorderSpy{}
	p := NewTracked(&stubProvider{id: "a", resolveFn: func(context.Context, string) (*core.ResolvedMedia, error) {
		return sampleMedia(), nil
	}}, "v2scraper", time.Second, spy)

	media, err := p.Resolve(context.Background(), "u")
	require.NoError(t, err)
	assert.NotNil(t, media)
	assert.Equal(t, []call{{"a", true}}, spy.Calls())
	assert.Equal(t, "v2scraper", p.Type())
	assert.Equal(t, "Stub a", p.Name())
}

func TestTracked_RecordsFailureOnce(t *testing.T) {
	spy := &recorderSpy{}
	p := NewTracked(&stubProvider{id: "b", resolveFn: func(context.Context, string) (*core.ResolvedMedia, error) {
		return nil, errors.New("connection reset")
	}}, "videos4", time.Second, spy)

	_, err := p.Resolve(context.Background(), "u")
	require.Error(t, err)

	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, core.ErrorTypeProvider, gwErr.Type)
	assert.Equal(t, "b", gwErr.Provider)
	assert.Equal(t, []call{{"b", false}}, spy.Calls())
}

func TestTracked_NilMediaIsFailure(t *testing.T) {
	spy := &recorderSpy{}
	p := NewTracked(&stubProvider{id: "a", resolveFn: func(context.Context, string) (*core.ResolvedMedia, error) {
		return nil, nil
	}}, "v2scraper", time.Second, spy)

	_, err := p.Resolve(context.Background(), "u")
	require.Error(t, err)
	assert.Equal(t, []call{{"a", false}}, spy.Calls())
}

func TestTracked_TimeoutBecomesProviderError(t *testing.T) {
	spy := &recorderSpy{}
	p := NewTracked(&stubProvider{id: "slow", resolveFn: func(ctx context.Context, _ string) (*core.ResolvedMedia, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}, "videos4", 20*time.Millisecond, spy)

	start := time.Now()
	_, err := p.Resolve(context.Background(), "u")
	assert.Less(t, time.Since(start), time.Second)

	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusGatewayTimeout, gwErr.StatusCode)
	assert.Equal(t, "request timed out", gwErr.Message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, []call{{"slow", false}}, spy.Calls())
}

func TestTracked_KeepsGatewayErrors(t *testing.T) {
	original := core.NewRateLimitError("", "quota")
	p := NewTracked(&stubProvider{id: "a", resolveFn: func(context.Context, string) (*core.ResolvedMedia, error) {
		return nil, original
	}}, "v2scraper", time.Second, nil)

	_, err := p.Resolve(context.Background(), "u")
	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Same(t, original, gwErr)
	assert.Equal(t, "a", gwErr.Provider)
}

func TestTracked_ProbeDoesNotRecord(t *testing.T) {
	spy := &recorderSpy{}
	p := NewTracked(&stubProvider{id: "a"}, "v2scraper", time.Second, spy)

	ex, err := p.Probe(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "a", ex.ProviderID)
	assert.Empty(t, spy.Calls())
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "success", outcomeLabel(nil))
	assert.Equal(t, "timeout", outcomeLabel(core.NewProviderError("a", 504, "request timed out", context.DeadlineExceeded)))
	assert.Equal(t, "canceled", outcomeLabel(core.NewProviderError("a", 502, "request canceled", context.Canceled)))
	assert.Equal(t, "error", outcomeLabel(errors.New("x")))
}

func TestSet_Lookup(t *testing.T) {
	a := NewTracked(&stubProvider{id: "host-a"}, "v2scraper", time.Second, nil)
	b := NewTracked(&stubProvider{id: "host-b"}, "videos4", time.Second, nil)
	set := NewSet(a, b)

	assert.Equal(t, []string{"host-a", "host-b"}, set.IDs())
	assert.Equal(t, 2, set.Len())

	got, ok := set.Lookup("videos4")
	require.True(t, ok)
	assert.Same(t, b, got)

	got, ok = set.Lookup("host-a")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = set.Lookup("missing")
	assert.False(t, ok)
}
