package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads so host settings cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "BODY_SIZE_LIMIT", "PROVIDER_TIMEOUT", "PROVIDER_MAX_RETRIES",
		"CACHE_TYPE", "CACHE_TTL", "REDIS_URL", "STORAGE_TYPE", "SQLITE_PATH",
		"POSTGRES_URL", "POSTGRES_MAX_CONNS", "MONGODB_URL", "MONGODB_DATABASE",
		"USAGE_BUFFER_SIZE", "RATE_LIMIT_WINDOW_MS", "RATE_LIMIT_MAX",
		"ADMIN_PASSWORD", "ADMIN_SESSION_TTL", "METRICS_ENABLED", "METRICS_ENDPOINT",
		"LOG_FORMAT", "LOG_LEVEL", "RAPIDAPI_KEY", "V2SCRAPER_API_KEY", "V2SCRAPER_BASE_URL",
		"VIDEOS4_API_KEY", "VIDEOS4_BASE_URL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestExpandString(t *testing.T) {
	t.Setenv("CFG_TEST_SET", "value")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no placeholders", "plain", "plain"},
		{"set variable", "${CFG_TEST_SET}", "value"},
		{"unset variable", "${CFG_TEST_UNSET}", ""},
		{"default used", "${CFG_TEST_UNSET:-fallback}", "fallback"},
		{"default ignored", "${CFG_TEST_SET:-fallback}", "value"},
		{"embedded", "redis://${CFG_TEST_SET}:6379", "redis://value:6379"},
		{"empty default", "${CFG_TEST_UNSET:-}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandString(tt.input))
		})
	}
}

func TestBuildDefaultConfig(t *testing.T) {
	cfg := buildDefaultConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DefaultProviderTimeout, cfg.Resolver.ProviderTimeout)
	assert.Equal(t, 0, cfg.Resolver.MaxRetries)
	assert.Equal(t, "local", cfg.Cache.Type)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "instaorbit", cfg.Storage.MongoDB.Database)
	assert.Equal(t, 1000, cfg.Usage.BufferSize)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 20, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 24*time.Hour, cfg.Admin.SessionTTL)
	assert.Empty(t, cfg.Providers)
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "shared key enables both providers",
			env:  map[string]string{"RAPIDAPI_KEY": "shared"},
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Providers, 2)
				assert.Equal(t, "shared", cfg.Providers[ProviderV2Scraper].APIKey)
				assert.Equal(t, "shared", cfg.Providers[ProviderVideos4].APIKey)
				assert.Equal(t, ProviderVideos4, cfg.Providers[ProviderVideos4].Type)
			},
		},
		{
			name: "per-provider key wins over shared",
			env: map[string]string{
				"RAPIDAPI_KEY":       "shared",
				"VIDEOS4_API_KEY":    "own",
				"V2SCRAPER_BASE_URL": "http://localhost:9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "own", cfg.Providers[ProviderVideos4].APIKey)
				assert.Equal(t, "shared", cfg.Providers[ProviderV2Scraper].APIKey)
				assert.Equal(t, "http://localhost:9000", cfg.Providers[ProviderV2Scraper].BaseURL)
			},
		},
		{
			name: "only one provider configured",
			env:  map[string]string{"V2SCRAPER_API_KEY": "k"},
			check: func(t *testing.T, cfg *Config) {
				assert.Len(t, cfg.Providers, 1)
				assert.Contains(t, cfg.Providers, ProviderV2Scraper)
			},
		},
		{
			name: "durations and counters",
			env: map[string]string{
				"PROVIDER_TIMEOUT":     "5",
				"CACHE_TTL":            "30m",
				"RATE_LIMIT_WINDOW_MS": "1500",
				"RATE_LIMIT_MAX":       "3",
				"PROVIDER_MAX_RETRIES": "2",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Resolver.ProviderTimeout)
				assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
				assert.Equal(t, 1500*time.Millisecond, cfg.RateLimit.Window)
				assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
				assert.Equal(t, 2, cfg.Resolver.MaxRetries)
			},
		},
		{
			name: "redis url feeds cache and storage",
			env:  map[string]string{"REDIS_URL": "redis://localhost:6379"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis://localhost:6379", cfg.Cache.RedisURL)
				assert.Equal(t, "redis://localhost:6379", cfg.Storage.Redis.URL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_MAX", "many")
	t.Setenv("CACHE_TTL", "forever")

	err := applyEnvOverrides(buildDefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX")
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestApplyProviderDefaults_ClampsTimeout(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultProviderTimeout},
		{100 * time.Millisecond, MinProviderTimeout},
		{10 * time.Minute, MaxProviderTimeout},
		{3 * time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		cfg := buildDefaultConfig()
		cfg.Resolver.ProviderTimeout = tt.in
		applyProviderDefaults(cfg)
		assert.Equal(t, tt.want, cfg.Resolver.ProviderTimeout, "input %s", tt.in)
	}
}

func TestLoadFrom_YAMLWithEnvExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("CFG_TEST_KEY", "from-env")

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
providers:
  primary:
    type: v2scraper
    api_key: ${CFG_TEST_KEY}
  fallback:
    type: videos4
    api_key: ${CFG_TEST_MISSING:-literal}
cache:
  ttl: 10m
`), 0o600))

	cfg, err := LoadFrom(yamlPath, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Providers["primary"].APIKey)
	assert.Equal(t, "literal", cfg.Providers["fallback"].APIKey)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"fallback", "primary"}, cfg.ProviderNames())
}

func TestLoadFrom_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("RAPIDAPI_KEY=dotenv-key\nPORT=7070\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("RAPIDAPI_KEY")
		_ = os.Unsetenv("PORT")
	})

	cfg, err := LoadFrom(filepath.Join(dir, "absent.yaml"), envPath)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "dotenv-key", cfg.Providers[ProviderV2Scraper].APIKey)
}

func TestLoadFrom_RequiresProvider(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFrom(filepath.Join(dir, "absent.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one provider")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := buildDefaultConfig()
		cfg.Providers[ProviderV2Scraper] = ProviderConfig{Type: ProviderV2Scraper, APIKey: "k"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown provider type", func(c *Config) {
			c.Providers["x"] = ProviderConfig{Type: "other", APIKey: "k"}
		}, "unknown type"},
		{"missing api key", func(c *Config) {
			c.Providers[ProviderVideos4] = ProviderConfig{Type: ProviderVideos4}
		}, "api_key is required"},
		{"redis cache without url", func(c *Config) { c.Cache.Type = "redis" }, "REDIS_URL"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "disk" }, "unknown cache type"},
		{"postgres without url", func(c *Config) { c.Storage.Type = "postgresql" }, "POSTGRES_URL"},
		{"mongo without url", func(c *Config) { c.Storage.Type = "mongodb" }, "MONGODB_URL"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "csv" }, "unknown storage type"},
		{"sqlite needs nothing", func(c *Config) { c.Storage.Type = "sqlite" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
