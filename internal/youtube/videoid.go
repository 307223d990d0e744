// Package youtube extracts video IDs from user input and probes watch pages for
// live status.
package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var watchHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
}

// ExtractVideoID accepts a bare 11-character video ID, a youtube.com watch URL
// or a youtu.be short link.
func ExtractVideoID(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	if videoIDPattern.MatchString(s) {
		return s, true
	}

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	var id string
	switch {
	case watchHosts[host] && u.Path == "/watch":
		id = u.Query().Get("v")
	case host == "youtu.be":
		id, _, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// ThumbnailURL returns the medium-quality thumbnail for a video.
func ThumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + url.PathEscape(videoID) + "/mqdefault.jpg"
}

// WatchURL returns the canonical watch page for a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}
