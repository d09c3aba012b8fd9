package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"unset", "", 5 * time.Second},
		{"integer seconds", "12", 12 * time.Second},
		{"duration string", "1m30s", 90 * time.Second},
		{"garbage", "soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_HTTPCLIENT_DURATION", tt.value)
			assert.Equal(t, tt.expected, EnvDuration("TEST_HTTPCLIENT_DURATION", 5*time.Second))
		})
	}
}

func TestNew(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("HTTP_RESPONSE_HEADER_TIMEOUT", "")

	client := NewProviderClient()
	assert.Equal(t, time.Minute, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 10, transport.MaxIdleConnsPerHost)
	assert.Equal(t, time.Minute, transport.ResponseHeaderTimeout)

	media := NewMediaClient()
	assert.Zero(t, media.Timeout)
	assert.Equal(t, 30*time.Second, media.Transport.(*http.Transport).ResponseHeaderTimeout)
}

func TestProviderConfig_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "15")
	assert.Equal(t, 15*time.Second, ProviderConfig().Timeout)
	assert.Zero(t, MediaConfig().Timeout)
}
