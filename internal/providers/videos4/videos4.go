// Package videos4 provides the "Instagram Stories/Videos Downloader" RapidAPI adapter.
package videos4

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"instaorbit/internal/core"
	"instaorbit/internal/providers"
	"instaorbit/internal/upstream"
)

// Registration provides factory registration for the videos4 provider.
var Registration = providers.Registration{
	Type: "videos4",
	New:  New,
}

const (
	// Host is the RapidAPI host and the provider identity.
	Host           = "instagram-downloader-download-instagram-stories-videos4.p.rapidapi.com"
	defaultBaseURL = "https://" + Host
	endpoint       = "/convert"
	displayName    = "Instagram Stories/Videos Downloader API"
)

// Provider implements the core.Provider interface for the videos4 converter API
type Provider struct {
	client *upstream.Client
}

// New creates a new videos4 provider.
func New(apiKey string, opts providers.ProviderOptions) core.Provider {
	p := NewWithHTTPClient(apiKey, opts.HTTPClient)
	p.client.SetMaxRetries(opts.MaxRetries)
	return p
}

// NewWithHTTPClient creates a provider with a custom HTTP client.
// If httpClient is nil, the shared default client is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client) *Provider {
	p := &Provider{}
	cfg := upstream.DefaultConfig(Host, defaultBaseURL)
	headers := providers.RapidAPIHeaders(apiKey, Host)
	if httpClient == nil {
		p.client = upstream.New(cfg, headers)
	} else {
		p.client = upstream.NewWithHTTPClient(httpClient, cfg, headers)
	}
	return p
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.client.SetBaseURL(url)
}

// ID returns the RapidAPI host.
func (p *Provider) ID() string { return Host }

// Name returns the display name.
func (p *Provider) Name() string { return displayName }

// Resolve converts the URL and normalizes the flat payload.
func (p *Provider) Resolve(ctx context.Context, targetURL string) (*core.ResolvedMedia, error) {
	var resp convertResponse
	if err := p.client.Do(ctx, p.request(targetURL), &resp); err != nil {
		return nil, err
	}
	media := resp.normalize()
	if media == nil {
		return nil, core.NewProviderError(Host, http.StatusBadGateway, "response has no media url", nil)
	}
	return media, nil
}

// Probe performs one raw call for the admin test harness.
func (p *Provider) Probe(ctx context.Context, targetURL string) (*core.Exchange, error) {
	resp, err := p.client.Probe(ctx, p.request(targetURL))
	if err != nil {
		return nil, err
	}
	return providers.NewExchange(p, resp), nil
}

func (p *Provider) request(targetURL string) upstream.Request {
	return upstream.Request{
		Endpoint: endpoint,
		Query:    url.Values{"url": {targetURL}},
	}
}

// convertResponse is the /convert payload: normally one flat url, sometimes a media array.
type convertResponse struct {
	URL       string         `json:"url"`
	Thumbnail string         `json:"thumbnail"`
	Title     string         `json:"title"`
	Caption   string         `json:"caption"`
	Username  string         `json:"username"`
	Author    string         `json:"author"`
	Type      string         `json:"type"`
	Quality   string         `json:"quality"`
	Media     []convertMedia `json:"media"`
}

type convertMedia struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Type      string `json:"type"`
	Quality   string `json:"quality"`
}

func (r *convertResponse) normalize() *core.ResolvedMedia {
	var items []core.MediaItem
	if r.URL != "" {
		items = append(items, newItem(r.URL, r.Thumbnail, r.Type, r.Quality))
	} else {
		for _, m := range r.Media {
			if m.URL == "" {
				continue
			}
			items = append(items, newItem(m.URL, m.Thumbnail, m.Type, m.Quality))
		}
	}
	if len(items) == 0 {
		return nil
	}

	author := providers.AtHandle(providers.FirstNonEmpty(r.Username, r.Author))
	if author == "" {
		author = core.DefaultAuthor
	}
	title := providers.FirstNonEmpty(r.Title, r.Caption, core.DefaultTitle)
	return core.NewResolvedMedia(items, title, author, r.Caption)
}

func newItem(src, thumbnail, kind, quality string) core.MediaItem {
	return core.MediaItem{
		Kind:         parseKind(kind),
		SourceURL:    src,
		ThumbnailURL: providers.FirstNonEmpty(thumbnail, core.DefaultThumbnailURL),
		Quality:      providers.FirstNonEmpty(quality, core.DefaultQuality),
	}
}

// parseKind defaults to video, matching the converter's primary use.
func parseKind(s string) core.MediaKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "photo", "img", "jpg", "jpeg":
		return core.MediaKindImage
	default:
		return core.MediaKindVideo
	}
}
