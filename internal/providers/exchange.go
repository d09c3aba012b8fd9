package providers

import (
	"net/http"
	"strings"

	"instaorbit/internal/core"
	"instaorbit/internal/upstream"
)

// RapidAPI authentication headers.
const (
	HeaderRapidAPIKey  = "x-rapidapi-key"
	HeaderRapidAPIHost = "x-rapidapi-host"
)

// RapidAPIHeaders returns a header setter for a RapidAPI-hosted provider.
func RapidAPIHeaders(apiKey, host string) upstream.HeaderSetter {
	return func(req *http.Request) {
		req.Header.Set(HeaderRapidAPIKey, apiKey)
		req.Header.Set(HeaderRapidAPIHost, host)
		if requestID := core.GetRequestID(req.Context()); requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}
	}
}

// NewExchange converts a raw upstream response into the admin diagnostic envelope.
// Credentials in the request headers are masked.
func NewExchange(p core.Provider, resp *upstream.Response) *core.Exchange {
	statusText := http.StatusText(resp.StatusCode)
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		statusText = text
	}
	return &core.Exchange{
		ProviderID:     p.ID(),
		ProviderName:   p.Name(),
		Method:         http.MethodGet,
		URL:            resp.URL,
		RequestHeaders: upstream.MaskedHeaders(resp.RequestHeaders),
		StatusCode:     resp.StatusCode,
		StatusText:     statusText,
		Headers:        upstream.MaskedHeaders(resp.Header),
		Body:           resp.Body,
		DurationMs:     resp.Duration.Milliseconds(),
	}
}

// AtHandle prefixes a username with "@" unless it already has one.
func AtHandle(username string) string {
	username = strings.TrimSpace(username)
	if username == "" || strings.HasPrefix(username, "@") {
		return username
	}
	return "@" + username
}

// FirstNonEmpty returns the first non-blank value.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
