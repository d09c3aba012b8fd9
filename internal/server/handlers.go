// Package server provides HTTP handlers and server setup for the media resolver.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"instaorbit/internal/core"
)

// Handler holds the HTTP handlers
type Handler struct {
	resolver core.Resolver
}

// NewHandler creates a new handler backed by resolver
func NewHandler(resolver core.Resolver) *Handler {
	return &Handler{
		resolver: resolver,
	}
}

type resolveRequest struct {
	URL string `json:"url"`
}

// Resolve handles POST /resolve and POST /api/download
func (h *Handler) Resolve(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("Invalid request body", err))
	}

	res, err := h.resolver.Resolve(c.Request().Context(), req.URL)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"provider": res.Provider,
		"data":     res.Media,
		"cached":   res.Cached,
	})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError converts resolver errors to HTTP responses. Provider causes never
// reach the client.
func handleError(c echo.Context, err error) error {
	var allFailed *core.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		gw := allFailed.Gateway()
		return c.JSON(gw.HTTPStatusCode(), gw.ToJSON())
	}

	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("unexpected error",
		"request_id", core.GetRequestID(c.Request().Context()),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"success": false,
		"error":   core.MsgInternalFailure,
		"type":    core.ErrorTypeInternal,
	})
}
