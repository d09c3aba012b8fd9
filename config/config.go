// Package config provides configuration management for the application.
//
// Values are layered: built-in defaults, then an optional config.yaml (with
// ${VAR} and ${VAR:-default} placeholders), then environment variables, which may
// also come from an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider types understood by the provider factory.
const (
	ProviderV2Scraper = "v2scraper"
	ProviderVideos4   = "videos4"
)

// DefaultBodySizeLimit is the default maximum request body size (64KB).
const DefaultBodySizeLimit int64 = 64 << 10

// Provider timeout bounds. Values outside the range are clamped.
const (
	MinProviderTimeout     = 1 * time.Second
	MaxProviderTimeout     = 60 * time.Second
	DefaultProviderTimeout = 8 * time.Second
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Resolver  ResolverConfig            `yaml:"resolver"`
	Cache     CacheConfig               `yaml:"cache"`
	Storage   StorageConfig             `yaml:"storage"`
	Usage     UsageConfig               `yaml:"usage"`
	RateLimit RateLimitConfig           `yaml:"rate_limit"`
	Admin     AdminConfig               `yaml:"admin"`
	Metrics   MetricsConfig             `yaml:"metrics"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string `yaml:"port"`
	BodySizeLimit int64  `yaml:"body_size_limit"`
}

// ProviderConfig configures one upstream adapter.
type ProviderConfig struct {
	Type    string `yaml:"type"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ResolverConfig controls the fan-out.
type ResolverConfig struct {
	// ProviderTimeout bounds every individual adapter call.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// MaxRetries is the number of in-call retries on 429/5xx (0 = single attempt).
	MaxRetries int `yaml:"max_retries"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Type is "local" (process memory) or "redis".
	Type     string        `yaml:"type"`
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
	// RedisPrefix namespaces cache keys in a shared Redis.
	RedisPrefix string `yaml:"redis_prefix"`
}

// StorageConfig selects the durable backend for usage counters.
type StorageConfig struct {
	// Type is "memory", "sqlite", "postgresql", "mongodb" or "redis".
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
	Redis      RedisConfig      `yaml:"redis"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// RedisConfig holds Redis-specific configuration for usage counters
type RedisConfig struct {
	URL string `yaml:"url"`
}

// UsageConfig configures the asynchronous usage tracker.
type UsageConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// RateLimitConfig configures the per-client request gate.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// AdminConfig configures the admin session gate.
type AdminConfig struct {
	// Password enables admin login when non-empty.
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Format is "json", "text" or "" (auto: text on a terminal, json otherwise).
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Load reads configuration from config.yaml, .env and the environment.
func Load() (*Config, error) {
	return LoadFrom("config.yaml", ".env")
}

// LoadFrom is Load with explicit file paths. Missing files are not an error.
func LoadFrom(yamlPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg := buildDefaultConfig()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			expanded := expandString(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", yamlPath, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyProviderDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildDefaultConfig returns the configuration used when nothing is set.
func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: DefaultBodySizeLimit,
		},
		Providers: map[string]ProviderConfig{},
		Resolver: ResolverConfig{
			ProviderTimeout: DefaultProviderTimeout,
		},
		Cache: CacheConfig{
			Type:        "local",
			TTL:         time.Hour,
			RedisPrefix: "instaorbit:resolve:",
		},
		Storage: StorageConfig{
			Type:    "memory",
			SQLite:  SQLiteConfig{Path: "data/instaorbit.db"},
			MongoDB: MongoDBConfig{Database: "instaorbit"},
			PostgreSQL: PostgreSQLConfig{
				MaxConns: 10,
			},
		},
		Usage: UsageConfig{BufferSize: 1000},
		RateLimit: RateLimitConfig{
			Window:      60 * time.Second,
			MaxRequests: 20,
		},
		Admin: AdminConfig{
			SessionTTL: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides overlays environment variables onto cfg.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	envString("PORT", &cfg.Server.Port)
	collect(envInt64("BODY_SIZE_LIMIT", &cfg.Server.BodySizeLimit))

	collect(envDuration("PROVIDER_TIMEOUT", &cfg.Resolver.ProviderTimeout))
	collect(envInt("PROVIDER_MAX_RETRIES", &cfg.Resolver.MaxRetries))

	envString("CACHE_TYPE", &cfg.Cache.Type)
	collect(envDuration("CACHE_TTL", &cfg.Cache.TTL))
	envString("REDIS_URL", &cfg.Cache.RedisURL)
	envString("REDIS_URL", &cfg.Storage.Redis.URL)

	envString("STORAGE_TYPE", &cfg.Storage.Type)
	envString("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	collect(envInt("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns))
	envString("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	envString("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	collect(envInt("USAGE_BUFFER_SIZE", &cfg.Usage.BufferSize))

	if v := os.Getenv("RATE_LIMIT_WINDOW_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			collect(fmt.Errorf("RATE_LIMIT_WINDOW_MS: %w", err))
		} else {
			cfg.RateLimit.Window = time.Duration(ms) * time.Millisecond
		}
	}
	collect(envInt("RATE_LIMIT_MAX", &cfg.RateLimit.MaxRequests))

	envString("ADMIN_PASSWORD", &cfg.Admin.Password)
	collect(envDuration("ADMIN_SESSION_TTL", &cfg.Admin.SessionTTL))

	collect(envBool("METRICS_ENABLED", &cfg.Metrics.Enabled))
	envString("METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	envString("LOG_FORMAT", &cfg.Logging.Format)
	envString("LOG_LEVEL", &cfg.Logging.Level)

	applyProviderEnv(cfg, ProviderV2Scraper, "V2SCRAPER")
	applyProviderEnv(cfg, ProviderVideos4, "VIDEOS4")

	return errors.Join(errs...)
}

// applyProviderEnv creates or updates a provider entry from <PREFIX>_API_KEY,
// <PREFIX>_BASE_URL and the shared RAPIDAPI_KEY fallback.
func applyProviderEnv(cfg *Config, name, prefix string) {
	key := os.Getenv(prefix + "_API_KEY")
	if key == "" {
		key = os.Getenv("RAPIDAPI_KEY")
	}
	baseURL := os.Getenv(prefix + "_BASE_URL")

	existing, ok := cfg.Providers[name]
	if !ok && key == "" {
		return
	}
	if existing.Type == "" {
		existing.Type = name
	}
	if key != "" {
		existing.APIKey = key
	}
	if baseURL != "" {
		existing.BaseURL = baseURL
	}
	cfg.Providers[name] = existing
}

// applyProviderDefaults fills the provider type from the map key when omitted
// and clamps timeouts into the supported range.
func applyProviderDefaults(cfg *Config) {
	for name, p := range cfg.Providers {
		if p.Type == "" {
			p.Type = name
			cfg.Providers[name] = p
		}
	}

	switch {
	case cfg.Resolver.ProviderTimeout <= 0:
		cfg.Resolver.ProviderTimeout = DefaultProviderTimeout
	case cfg.Resolver.ProviderTimeout < MinProviderTimeout:
		cfg.Resolver.ProviderTimeout = MinProviderTimeout
	case cfg.Resolver.ProviderTimeout > MaxProviderTimeout:
		cfg.Resolver.ProviderTimeout = MaxProviderTimeout
	}
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider credential is required (RAPIDAPI_KEY, V2SCRAPER_API_KEY or VIDEOS4_API_KEY)"))
	}
	for _, name := range c.ProviderNames() {
		p := c.Providers[name]
		if p.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider %q: api_key is required", name))
		}
		if p.Type != ProviderV2Scraper && p.Type != ProviderVideos4 {
			errs = append(errs, fmt.Errorf("provider %q: unknown type %q", name, p.Type))
		}
	}

	switch c.Cache.Type {
	case "local":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache type redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache type: %s (valid: local, redis)", c.Cache.Type))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}

	switch c.Storage.Type {
	case "memory", "sqlite":
	case "postgresql":
		if c.Storage.PostgreSQL.URL == "" {
			errs = append(errs, errors.New("storage type postgresql requires POSTGRES_URL"))
		}
	case "mongodb":
		if c.Storage.MongoDB.URL == "" {
			errs = append(errs, errors.New("storage type mongodb requires MONGODB_URL"))
		}
	case "redis":
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage type redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %s (valid: memory, sqlite, postgresql, mongodb, redis)", c.Storage.Type))
	}

	if c.RateLimit.MaxRequests < 0 || c.RateLimit.Window < 0 {
		errs = append(errs, errors.New("rate limit window and max must not be negative"))
	}

	return errors.Join(errs...)
}

// ProviderNames returns configured provider names in stable order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders from the environment.
// Unset variables without a default expand to "".
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// envDuration accepts integer seconds or a Go duration string.
func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
