package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instaorbit/config"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestLimiter_Allow(t *testing.T) {
	l := New(time.Minute, 3)
	now, clock := fixedClock(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))
	l.now = clock

	for i := 3; i > 0; i-- {
		d := l.Allow("1.2.3.4")
		require.True(t, d.Allowed)
		assert.Equal(t, i-1, d.Remaining)
		assert.Equal(t, 3, d.Limit)
	}

	d := l.Allow("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// other clients are unaffected
	assert.True(t, l.Allow("5.6.7.8").Allowed)

	// rejected requests do not extend the window
	*now = now.Add(time.Minute)
	d = l.Allow("1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := New(10*time.Second, 2)
	now, clock := fixedClock(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))
	l.now = clock

	require.True(t, l.Allow("k").Allowed)
	*now = now.Add(6 * time.Second)
	require.True(t, l.Allow("k").Allowed)
	*now = now.Add(3 * time.Second)
	require.False(t, l.Allow("k").Allowed)

	// the first hit leaves the window, the second one is still inside
	*now = now.Add(time.Second)
	d := l.Allow("k")
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiter_PrunesIdleClients(t *testing.T) {
	l := New(time.Second, 5)
	now, clock := fixedClock(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC))
	l.now = clock

	l.Allow("a")
	l.Allow("b")
	l.Allow("c")
	assert.Equal(t, 3, l.Len())

	*now = now.Add(2 * time.Second)
	l.Allow("d")
	assert.Equal(t, 1, l.Len())
}

func TestNewFromConfig_Defaults(t *testing.T) {
	l := NewFromConfig(config.RateLimitConfig{})
	assert.Equal(t, DefaultWindow, l.Window())
	assert.Equal(t, DefaultMaxRequests, l.max)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	l := New(time.Minute, 2)
	e.POST("/api/download", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Middleware(l))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/download", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do("10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get(HeaderLimit))
	assert.Equal(t, "1", rec.Header().Get(HeaderRemaining))
	reset, err := strconv.ParseInt(rec.Header().Get(HeaderReset), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, time.Now().Unix())

	rec = do("10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))

	rec = do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, MsgTooManyRequests, body["error"])
	assert.Equal(t, float64(60), body["retryAfter"])

	rec = do("10.0.0.2")
	assert.Equal(t, http.StatusOK, rec.Code)
}
