// Package validation checks and decomposes user-submitted Instagram URLs.
package validation

import (
	"net/url"
	"regexp"
	"strings"
)

// instagramURL accepts post, reel, tv and story links. Only scheme and host are
// case-insensitive; the path kind and shortcode must match exactly.
var instagramURL = regexp.MustCompile(`^(?i:https?)://(?i:(?:www\.)?instagram\.com)/(p|reel|tv|stories)/([A-Za-z0-9_-]+)/?(\?.*)?$`)

// MediaType is the kind of Instagram page a URL points to.
type MediaType string

const (
	MediaTypePost  MediaType = "post"
	MediaTypeReel  MediaType = "reel"
	MediaTypeTV    MediaType = "tv"
	MediaTypeStory MediaType = "story"
)

// IsValidInstagramURL reports whether input is a supported Instagram media URL.
func IsValidInstagramURL(input string) bool {
	if input == "" {
		return false
	}
	return instagramURL.MatchString(input)
}

// Shortcode returns the media segment of a valid URL, or "" if input is not valid.
func Shortcode(input string) string {
	m := instagramURL.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	return m[2]
}

// TypeOf returns the media type of a valid URL, or "" if input is not valid.
func TypeOf(input string) MediaType {
	m := instagramURL.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	switch m[1] {
	case "p":
		return MediaTypePost
	case "reel":
		return MediaTypeReel
	case "tv":
		return MediaTypeTV
	case "stories":
		return MediaTypeStory
	}
	return ""
}

// Sanitize strips query and fragment from an Instagram URL, returning
// scheme://host/path. Non-Instagram or unparsable input yields "".
func Sanitize(input string) string {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + host + u.EscapedPath()
}

// IsInstagramCDNHost reports whether host serves Instagram media and may be fetched
// by the media proxy.
func IsInstagramCDNHost(host string) bool {
	host = strings.ToLower(host)
	for _, suffix := range []string{".cdninstagram.com", ".fbcdn.net"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return host == "cdninstagram.com" || host == "fbcdn.net"
}
