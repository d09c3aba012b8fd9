package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidInstagramURL(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"https://instagram.com/p/ABC123/", true},
		{"https://www.instagram.com/reel/xyz_9-Z/?utm=1", true},
		{"http://instagram.com/tv/abc", true},
		{"https://www.instagram.com/stories/someone", true},
		{"HTTPS://WWW.INSTAGRAM.COM/p/CxYz1234/", true},
		{"https://instagram.com/p/CxYz1234/?igsh=abc&x=y", true},

		{"", false},
		{"instagram.com/p/ABC123/", false},
		{"ftp://instagram.com/p/ABC123/", false},
		{"https://instagram.com/", false},
		{"https://instagram.com/someuser/", false},
		{"https://instagram.com/direct/t/123/", false},
		{"https://instagram.com/P/ABC123/", false},
		{"https://instagram.com/p/", false},
		{"https://instagram.com/p/ABC 123/", false},
		{"https://instagram.com/p/ABC123/extra", false},
		{"https://notinstagram.com/p/ABC123/", false},
		{"https://instagram.com.evil.io/p/ABC123/", false},
		{"https://m.instagram.com/p/ABC123/", false},
		{"https://example.com/?u=https://instagram.com/p/ABC123/", false},
		{" https://instagram.com/p/ABC123/", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidInstagramURL(tt.input))
		})
	}
}

func TestShortcodeAndType(t *testing.T) {
	assert.Equal(t, "CxYz1234", Shortcode("https://instagram.com/p/CxYz1234/"))
	assert.Equal(t, MediaTypePost, TypeOf("https://instagram.com/p/CxYz1234/"))
	assert.Equal(t, MediaTypeReel, TypeOf("https://www.instagram.com/reel/xyz_9-Z/?utm=1"))
	assert.Equal(t, MediaTypeTV, TypeOf("https://instagram.com/tv/abc"))
	assert.Equal(t, MediaTypeStory, TypeOf("https://instagram.com/stories/abc/"))

	assert.Empty(t, Shortcode("https://example.com/p/abc"))
	assert.Empty(t, TypeOf("https://instagram.com/user"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/reel/abc/", Sanitize("https://www.instagram.com/reel/abc/?utm=1#frag"))
	assert.Equal(t, "https://instagram.com/p/abc", Sanitize("HTTPS://Instagram.com/p/abc"))
	assert.Empty(t, Sanitize("https://example.com/p/abc"))
	assert.Empty(t, Sanitize("not a url"))
}

func TestIsInstagramCDNHost(t *testing.T) {
	assert.True(t, IsInstagramCDNHost("scontent-lax3-1.cdninstagram.com"))
	assert.True(t, IsInstagramCDNHost("video.xx.fbcdn.net"))
	assert.False(t, IsInstagramCDNHost("evil-cdninstagram.com"))
	assert.False(t, IsInstagramCDNHost("example.com"))
}
