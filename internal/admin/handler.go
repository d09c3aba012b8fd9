// Package admin provides the session-gated admin API: usage inspection and reset,
// and the diagnostic harness that calls one provider or the full resolution flow.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"instaorbit/config"
	"instaorbit/internal/core"
	"instaorbit/internal/providers"
	"instaorbit/internal/usage"
)

// CookieName is the session cookie set after a successful login.
const CookieName = "admin_token"

// endpointAliases maps the dashboard's endpoint names onto provider types.
var endpointAliases = map[string]string{
	"api1": config.ProviderV2Scraper,
	"api2": config.ProviderVideos4,
}

// UsageService is the part of the usage tracker the admin API needs.
// *usage.Tracker satisfies this interface.
type UsageService interface {
	Usage(ctx context.Context, known ...string) *usage.Report
	Reset(ctx context.Context) error
}

// FlowResolver runs the full resolution flow. *resolver.Resolver satisfies this interface.
type FlowResolver interface {
	core.Resolver
	Providers() []string
}

// ProviderSet finds a single provider by id or type. *providers.Set satisfies this interface.
type ProviderSet interface {
	Lookup(key string) (*providers.Tracked, bool)
}

// Config holds the admin handler dependencies.
type Config struct {
	// Password enables login when non-empty.
	Password   string
	SessionTTL time.Duration
	Usage      UsageService
	Providers  ProviderSet
	Resolver   FlowResolver
}

// Handler serves admin API endpoints.
type Handler struct {
	password  string
	sessions  *SessionStore
	usage     UsageService
	providers ProviderSet
	resolver  FlowResolver
	now       func() time.Time
}

// NewHandler creates a new admin API handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		password:  cfg.Password,
		sessions:  NewSessionStore(cfg.SessionTTL),
		usage:     cfg.Usage,
		providers: cfg.Providers,
		resolver:  cfg.Resolver,
		now:       time.Now,
	}
}

// Register mounts the admin routes on g (normally /api/admin).
func (h *Handler) Register(g *echo.Group) {
	g.POST("/auth", h.Login)
	g.GET("/auth", h.CheckSession)
	g.DELETE("/auth", h.Logout)

	gated := g.Group("", h.RequireSession)
	gated.GET("/usage", h.GetUsage)
	gated.DELETE("/usage", h.ResetUsage)
	gated.POST("/test", h.TestProvider)
	gated.POST("/test/flow", h.TestFlow)
}

// RequireSession rejects requests without a live admin session.
func (h *Handler) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.sessions.Valid(sessionToken(c)) {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{"error": "Unauthorized"})
		}
		return next(c)
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/admin/auth
func (h *Handler) Login(c echo.Context) error {
	if h.password == "" {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"error": "Admin login is disabled"})
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) != 1 {
		slog.Warn("admin login rejected", "client_ip", c.RealIP())
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{"error": "Invalid password"})
	}

	token := h.sessions.Create()
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Authentication successful",
	})
}

// CheckSession handles GET /api/admin/auth
func (h *Handler) CheckSession(c echo.Context) error {
	if !h.sessions.Valid(sessionToken(c)) {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"authenticated": true})
}

// Logout handles DELETE /api/admin/auth
func (h *Handler) Logout(c echo.Context) error {
	if token := sessionToken(c); token != "" {
		h.sessions.Revoke(token)
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

// GetUsage handles GET /api/admin/usage
func (h *Handler) GetUsage(c echo.Context) error {
	if h.usage == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"success": false, "error": "Usage tracking is unavailable"})
	}

	var known []string
	if h.resolver != nil {
		known = h.resolver.Providers()
	}
	report := h.usage.Usage(c.Request().Context(), known...)
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": report})
}

// ResetUsage handles DELETE /api/admin/usage
func (h *Handler) ResetUsage(c echo.Context) error {
	if h.usage == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"success": false, "error": "Usage tracking is unavailable"})
	}

	if err := h.usage.Reset(c.Request().Context()); err != nil {
		slog.Error("failed to reset usage", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to reset usage stats",
		})
	}
	slog.Info("usage stats reset", "client_ip", c.RealIP())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Usage stats reset successfully",
	})
}

type testRequest struct {
	APIEndpoint string `json:"apiEndpoint"`
	Provider    string `json:"provider"`
	URL         string `json:"url"`
}

type exchangeRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

type exchangeResponse struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       interface{}       `json:"data"`
}

// TestProvider handles POST /api/admin/test
// It calls exactly one provider, bypassing the cache and the race, and returns
// the raw exchange.
func (h *Handler) TestProvider(c echo.Context) error {
	var req testRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": core.MsgURLRequired})
	}

	key := req.Provider
	if alias, ok := endpointAliases[req.APIEndpoint]; ok {
		key = alias
	} else if key == "" {
		key = req.APIEndpoint
	}
	var (
		p  *providers.Tracked
		ok bool
	)
	if h.providers != nil && key != "" {
		p, ok = h.providers.Lookup(key)
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid API endpoint"})
	}

	ex, err := p.Probe(c.Request().Context(), req.URL)
	if err != nil {
		slog.Warn("admin provider test failed", "provider", p.ID(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success":   false,
			"error":     errorMessage(err, "API test failed"),
			"timestamp": h.timestamp(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"provider": ex.ProviderID,
		"apiName":  ex.ProviderName,
		"request": exchangeRequest{
			Method:  ex.Method,
			URL:     ex.URL,
			Headers: ex.RequestHeaders,
		},
		"response": exchangeResponse{
			Status:     ex.StatusCode,
			StatusText: ex.StatusText,
			Headers:    ex.Headers,
			Data:       bodyData(ex.Body),
		},
		"durationMs": ex.DurationMs,
		"timestamp":  h.timestamp(),
	})
}

type flowRequest struct {
	URL string `json:"url"`
}

// TestFlow handles POST /api/admin/test/flow
// It runs the same flow as the public endpoint and reports which provider answered.
func (h *Handler) TestFlow(c echo.Context) error {
	if h.resolver == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"success": false, "error": "Resolver is unavailable"})
	}

	var req flowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "Invalid request body"})
	}

	start := h.now()
	res, err := h.resolver.Resolve(c.Request().Context(), req.URL)
	elapsed := h.now().Sub(start)

	if err != nil {
		body := map[string]interface{}{
			"success":    false,
			"durationMs": elapsed.Milliseconds(),
			"timestamp":  h.timestamp(),
		}
		status := http.StatusInternalServerError

		var allFailed *core.AllProvidersFailedError
		var gwErr *core.GatewayError
		switch {
		case errors.As(err, &allFailed):
			gw := allFailed.Gateway()
			status = gw.HTTPStatusCode()
			body["error"] = gw.Message
			failures := make(map[string]string, len(allFailed.Failures))
			for id, ferr := range allFailed.Failures {
				failures[id] = ferr.Error()
			}
			body["failures"] = failures
		case errors.As(err, &gwErr):
			status = gwErr.HTTPStatusCode()
			body["error"] = gwErr.Message
		default:
			body["error"] = err.Error()
		}
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"provider":   res.Provider,
		"cached":     res.Cached,
		"data":       res.Media,
		"durationMs": elapsed.Milliseconds(),
		"timestamp":  h.timestamp(),
	})
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

func sessionToken(c echo.Context) string {
	cookie, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// bodyData returns body as raw JSON when it parses, otherwise as text.
func bodyData(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func errorMessage(err error, fallback string) string {
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
