package server

import (
	"context"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"instaorbit/config"
	"instaorbit/internal/admin"
	"instaorbit/internal/core"
	"instaorbit/internal/ratelimit"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 64KB)

	// RateLimiter guards /api/* and /resolve when set.
	RateLimiter *ratelimit.Limiter
	// AdminHandler serves /api/admin/* when set.
	AdminHandler *admin.Handler
	// MediaClient is used by the CDN media proxy.
	MediaClient *http.Client
}

// New creates a new HTTP server
func New(resolver core.Resolver, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(resolver)
	media := NewMediaProxy(cfg.MediaClient)

	// Global middleware stack (order matters)
	e.Use(RequestContext())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())

	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	var limited []echo.MiddlewareFunc
	if cfg.RateLimiter != nil {
		limited = append(limited, ratelimit.Middleware(cfg.RateLimiter))
	}

	e.POST("/resolve", handler.Resolve, limited...)

	api := e.Group("/api", limited...)
	api.POST("/download", handler.Resolve)
	api.GET("/proxy-image", media.ProxyImage)
	api.POST("/download-media", media.DownloadMedia)

	if cfg.AdminHandler != nil {
		cfg.AdminHandler.Register(api.Group("/admin"))
	}

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
