package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instaorbit/internal/core"
)

// mockResolver implements core.Resolver for testing
type mockResolver struct {
	res     *core.Resolution
	err     error
	lastURL string
}

func (m *mockResolver) Resolve(_ context.Context, rawURL string) (*core.Resolution, error) {
	m.lastURL = rawURL
	return m.res, m.err
}

func postJSON(srv http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestResolve(t *testing.T) {
	media := core.NewResolvedMedia([]core.MediaItem{
		{Kind: core.MediaKindVideo, SourceURL: "https://scontent.cdninstagram.com/v.mp4", Quality: "HD"},
		{Kind: core.MediaKindImage, SourceURL: "https://scontent.cdninstagram.com/i.jpg", Quality: "HD"},
	}, "Instagram Post", "creator", "caption")

	for _, path := range []string{"/resolve", "/api/download"} {
		t.Run(path, func(t *testing.T) {
			mock := &mockResolver{res: &core.Resolution{Media: media, Provider: "scraper.example"}}
			srv := New(mock, nil)

			rec := postJSON(srv, path, `{"url":"https://instagram.com/p/CxYz1234/"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "https://instagram.com/p/CxYz1234/", mock.lastURL)

			var body struct {
				Success  bool                `json:"success"`
				Provider string              `json:"provider"`
				Cached   bool                `json:"cached"`
				Data     *core.ResolvedMedia `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Equal(t, "scraper.example", body.Provider)
			assert.False(t, body.Cached)
			require.NotNil(t, body.Data)
			assert.True(t, body.Data.IsCarousel)
			assert.Equal(t, 2, body.Data.ItemCount)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		body        string
		wantStatus  int
		wantMessage string
		mustNotLeak string
	}{
		{
			name:        "invalid url",
			err:         core.NewInvalidURLError(),
			body:        `{"url":"https://example.com"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: core.MsgInvalidURL,
		},
		{
			name: "all providers failed",
			err: &core.AllProvidersFailedError{Failures: map[string]error{
				"scraper.example": errors.New("x-rapidapi-key rejected: abcd1234"),
			}},
			body:        `{"url":"https://instagram.com/p/abc/"}`,
			wantStatus:  http.StatusNotFound,
			wantMessage: core.MsgMediaNotFound,
			mustNotLeak: "abcd1234",
		},
		{
			name:        "unexpected error",
			err:         errors.New("nil pointer somewhere"),
			body:        `{"url":"https://instagram.com/p/abc/"}`,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: core.MsgInternalFailure,
			mustNotLeak: "nil pointer",
		},
		{
			name:        "malformed body",
			body:        `{"url":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&mockResolver{err: tt.err}, nil)

			rec := postJSON(srv, "/resolve", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMessage, body["error"])
			if tt.mustNotLeak != "" {
				assert.NotContains(t, rec.Body.String(), tt.mustNotLeak)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := New(&mockResolver{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
