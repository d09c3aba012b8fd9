// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the instaorbit server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"instaorbit/config"
	"instaorbit/internal/admin"
	"instaorbit/internal/cache"
	"instaorbit/internal/httpclient"
	"instaorbit/internal/providers"
	"instaorbit/internal/ratelimit"
	"instaorbit/internal/resolver"
	"instaorbit/internal/server"
	"instaorbit/internal/usage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config    *config.Config
	usage     *usage.Result
	cache     cache.Cache
	providers *providers.Set
	resolver  *resolver.Resolver
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the validated configuration produced by config.Load.
	AppConfig *config.Config

	// Factory provides the ProviderFactory used to construct provider instances.
	Factory *providers.ProviderFactory
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}

	appCfg := cfg.AppConfig
	app := &App{
		config: appCfg,
	}

	// Usage tracking comes first: every provider reports into it.
	usageResult, err := usage.New(ctx, appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize usage tracking: %w", err)
	}
	app.usage = usageResult

	responseCache, err := cache.New(appCfg.Cache)
	if err != nil {
		closeErr := app.usage.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w (also: usage close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.cache = responseCache

	set, err := providers.Init(appCfg, cfg.Factory, usageResult.Tracker)
	if err != nil {
		closeErr := errors.Join(app.cache.Close(), app.usage.Close())
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize providers: %w (also: close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}
	app.providers = set
	app.resolver = resolver.NewFromSet(set, responseCache)

	app.logStartupInfo()

	serverCfg := &server.Config{
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
		RateLimiter:     ratelimit.NewFromConfig(appCfg.RateLimit),
		MediaClient:     httpclient.NewMediaClient(),
	}

	if appCfg.Admin.Password != "" {
		serverCfg.AdminHandler = admin.NewHandler(admin.Config{
			Password:   appCfg.Admin.Password,
			SessionTTL: appCfg.Admin.SessionTTL,
			Usage:      usageResult.Tracker,
			Providers:  set,
			Resolver:   app.resolver,
		})
		slog.Info("admin API enabled", "api", "/api/admin")
	} else {
		slog.Info("admin API disabled", "reason", "ADMIN_PASSWORD not set")
	}

	app.server = server.New(app.resolver, serverCfg)

	return app, nil
}

// Resolver returns the fan-out resolver.
func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

// Usage returns the usage tracker.
func (a *App) Usage() *usage.Tracker {
	if a.usage == nil {
		return nil
	}
	return a.usage.Tracker
}

// Handler returns the HTTP handler, for embedding or tests.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server, then the response cache, then the usage tracker, which
// drains queued increments before its store closes.
//
// Shutdown is idempotent. It attempts every step and returns the joined failures.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	// 1. Stop accepting new requests
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	// 2. Close the response cache
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	// 3. Drain and close usage tracking
	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			slog.Error("usage tracker close error", "error", err)
			errs = append(errs, fmt.Errorf("usage close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("providers configured",
		"providers", a.providers.IDs(),
		"timeout", cfg.Resolver.ProviderTimeout,
		"max_retries", cfg.Resolver.MaxRetries,
	)
	slog.Info("cache configured", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)
	slog.Info("storage configured", "type", a.usage.Storage.Type())

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}
}
