package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"instaorbit/internal/core"
	"instaorbit/internal/upstream"
	"instaorbit/internal/validation"
)

const (
	mediaUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	mediaReferer   = "https://www.instagram.com/"

	maxMediaRedirects = 5
)

var errMediaHost = errors.New("host is not an Instagram CDN")

// MediaProxy fetches Instagram CDN media server-side and streams it back, so
// browsers can display and save assets the CDN would block cross-origin.
type MediaProxy struct {
	client    *http.Client
	allowHost func(host string) bool
}

// NewMediaProxy creates a proxy that only fetches from Instagram CDN hosts.
// Redirects are followed only while they stay on allowed hosts.
func NewMediaProxy(client *http.Client) *MediaProxy {
	if client == nil {
		client = http.DefaultClient
	}
	p := &MediaProxy{allowHost: validation.IsInstagramCDNHost}
	guarded := *client
	guarded.CheckRedirect = p.checkRedirect
	p.client = &guarded
	return p
}

func (p *MediaProxy) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxMediaRedirects {
		return fmt.Errorf("stopped after %d redirects", maxMediaRedirects)
	}
	if !p.allowed(req.URL) {
		return errMediaHost
	}
	return nil
}

func (p *MediaProxy) allowed(u *url.URL) bool {
	return (u.Scheme == "https" || u.Scheme == "http") && p.allowHost(u.Hostname())
}

// ProxyImage handles GET /api/proxy-image?url=
func (p *MediaProxy) ProxyImage(c echo.Context) error {
	target := c.QueryParam("url")
	if target == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "URL parameter is required"})
	}

	resp, err := p.fetch(c, target, true)
	if err != nil {
		return p.fail(c, target, err, "Failed to load image")
	}
	defer resp.Body.Close()

	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	return stream(c, resp, "image/jpeg")
}

type downloadRequest struct {
	URL string `json:"url"`
}

// DownloadMedia handles POST /api/download-media
func (p *MediaProxy) DownloadMedia(c echo.Context) error {
	var req downloadRequest
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": core.MsgURLRequired})
	}

	resp, err := p.fetch(c, req.URL, false)
	if err != nil {
		return p.fail(c, req.URL, err, "Failed to download media")
	}
	defer resp.Body.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentDisposition, "attachment")
	h.Set("Cache-Control", "public, max-age=31536000")
	return stream(c, resp, echo.MIMEOctetStream)
}

func (p *MediaProxy) fetch(c echo.Context, target string, referer bool) (*http.Response, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("invalid media url: %q", target)
	}
	if !p.allowed(u) {
		return nil, errMediaHost
	}

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", mediaUserAgent)
	req.Header.Set("Accept-Encoding", "br, gzip")
	if referer {
		req.Header.Set("Referer", mediaReferer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	return resp, nil
}

func (p *MediaProxy) fail(c echo.Context, target string, err error, message string) error {
	slog.Warn("media proxy failed",
		"url", target,
		"request_id", core.GetRequestID(c.Request().Context()),
		"error", err,
	)
	if errors.Is(err, errMediaHost) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"error": "URL host is not allowed"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": message})
}

// stream copies the decoded CDN body to the client.
func stream(c echo.Context, resp *http.Response, fallbackType string) error {
	body, err := upstream.DecodedBody(resp)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to decode media"})
	}
	defer body.Close()

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = fallbackType
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	if resp.Header.Get("Content-Encoding") == "" && resp.ContentLength > 0 {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(resp.ContentLength, 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	if _, err := io.Copy(c.Response(), body); err != nil {
		// headers are already sent
		slog.Debug("media stream interrupted", "error", err)
	}
	return nil
}
