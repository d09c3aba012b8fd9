// Package v2scraper provides the "Instagram Downloader V2" RapidAPI adapter.
package v2scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"instaorbit/internal/core"
	"instaorbit/internal/providers"
	"instaorbit/internal/upstream"
)

// Registration provides factory registration for the V2 scraper provider.
var Registration = providers.Registration{
	Type: "v2scraper",
	New:  New,
}

const (
	// Host is the RapidAPI host and the provider identity.
	Host           = "instagram-downloader-v2-scraper-reels-igtv-posts-stories.p.rapidapi.com"
	defaultBaseURL = "https://" + Host
	endpoint       = "/get-post"
	displayName    = "Instagram Downloader V2 API"
)

// Provider implements the core.Provider interface for the V2 scraper API
type Provider struct {
	client *upstream.Client
}

// New creates a new V2 scraper provider.
func New(apiKey string, opts providers.ProviderOptions) core.Provider {
	p := newProvider(apiKey, opts.HTTPClient)
	p.client.SetMaxRetries(opts.MaxRetries)
	return p
}

// NewWithHTTPClient creates a provider with a custom HTTP client.
// If httpClient is nil, the shared default client is used.
func NewWithHTTPClient(apiKey string, httpClient *http.Client) *Provider {
	return newProvider(apiKey, httpClient)
}

func newProvider(apiKey string, httpClient *http.Client) *Provider {
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

// Resolve fetches the post and normalizes its media array.
func (p *Provider) Resolve(ctx context.Context, targetURL string) (*core.ResolvedMedia, error) {
	var resp getPostResponse
	if err := p.client.Do(ctx, p.request(targetURL), &resp); err != nil {
		return nil, err
	}
	media := resp.normalize()
	if media == nil {
		return nil, core.NewProviderError(Host, http.StatusBadGateway, "response has no media", nil)
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

// getPostResponse is the /get-post payload. Only the fields used are declared.
type getPostResponse struct {
	Media []mediaNode `json:"media"`
}

type mediaNode struct {
	IsVideo    flexBool `json:"is_video"`
	URL        string   `json:"url"`
	VideoURL   string   `json:"video_url"`
	DisplayURL string   `json:"display_url"`
	Thumbnail  string   `json:"thumbnail"`
	Caption    string   `json:"caption"`
	Owner      struct {
		Username string `json:"username"`
	} `json:"owner"`
	Username     string `json:"username"`
	LikeCount    *int64 `json:"like_count"`
	CommentCount *int64 `json:"comment_count"`
}

// normalize maps the media array to core.ResolvedMedia. Elements without a
// source URL are skipped, so the item count covers usable elements only, and
// title and author come from the first usable element. nil is returned when
// nothing usable remains.
func (r *getPostResponse) normalize() *core.ResolvedMedia {
	items := make([]core.MediaItem, 0, len(r.Media))
	var lead *mediaNode
	for i := range r.Media {
		item, ok := r.Media[i].item()
		if !ok {
			continue
		}
		if lead == nil {
			lead = &r.Media[i]
		}
		items = append(items, item)
	}
	if lead == nil {
		return nil
	}

	author := providers.AtHandle(providers.FirstNonEmpty(lead.Owner.Username, lead.Username))
	if author == "" {
		author = core.DefaultAuthor
	}
	title := providers.FirstNonEmpty(lead.Caption, core.DefaultTitle)

	media := core.NewResolvedMedia(items, title, author, lead.Caption)
	media.LikeCount = lead.LikeCount
	media.CommentCount = lead.CommentCount
	return media
}

func (n mediaNode) item() (core.MediaItem, bool) {
	if bool(n.IsVideo) {
		src := providers.FirstNonEmpty(n.VideoURL, n.URL)
		if src == "" {
			return core.MediaItem{}, false
		}
		thumb := providers.FirstNonEmpty(n.Thumbnail, n.DisplayURL, core.DefaultThumbnailURL)
		return core.MediaItem{
			Kind:         core.MediaKindVideo,
			SourceURL:    src,
			ThumbnailURL: thumb,
			Quality:      core.DefaultQuality,
		}, true
	}

	src := providers.FirstNonEmpty(n.URL, n.DisplayURL)
	if src == "" {
		return core.MediaItem{}, false
	}
	return core.MediaItem{
		Kind:         core.MediaKindImage,
		SourceURL:    src,
		ThumbnailURL: src,
		Quality:      core.DefaultQuality,
	}, true
}

// flexBool accepts JSON booleans, numbers and strings ("true", "1").
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = false
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseBool(s)
		*b = flexBool(err == nil && v)
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		switch t := v.(type) {
		case bool:
			*b = flexBool(t)
		case float64:
			*b = t != 0
		default:
			*b = false
		}
	}
	return nil
}
