// Package models holds the JSON wire schemas exchanged between the backend API
// and the dashboard gateway.
package models

import (
	"fmt"
	"time"
)

// VideoItem is one registered video as returned by GET /videos.
type VideoItem struct {
	VideoID string  `json:"video_id"`
	Name    *string `json:"name,omitempty"`
}

func (v VideoItem) Validate() error {
	if v.VideoID == "" {
		return fmt.Errorf("video item: video_id is required")
	}
	return nil
}

// StatusItem is the latest live check result for one video (GET /status).
type StatusItem struct {
	VideoID    string    `json:"video_id"`
	IsLiveNow  bool      `json:"is_live_now"`
	LiveStatus *string   `json:"live_status,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	Note       *string   `json:"note,omitempty"`
}

func (s StatusItem) Validate() error {
	if s.VideoID == "" {
		return fmt.Errorf("status item: video_id is required")
	}
	if s.CheckedAt.IsZero() {
		return fmt.Errorf("status item %s: checked_at is required", s.VideoID)
	}
	return nil
}

// Health is the GET /healthz summary.
type Health struct {
	OK       bool `json:"ok"`
	Watching int  `json:"watching"`
	Cached   int  `json:"cached"`
}

// VideoCreate is the POST /videos body. WatchURL accepts a bare ID or a URL.
type VideoCreate struct {
	WatchURL string  `json:"watch_url"`
	Name     *string `json:"name,omitempty"`
}

func (c VideoCreate) Validate() error {
	if c.WatchURL == "" {
		return fmt.Errorf("watch_url is required")
	}
	return nil
}

// VideoRemoved is the DELETE /videos/{video_id} response.
type VideoRemoved struct {
	Removed string `json:"removed"`
}

// ValidateVideos checks every item, reporting the first failure with its position.
func ValidateVideos(items []VideoItem) error {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("videos[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateStatuses checks every item, reporting the first failure with its position.
func ValidateStatuses(items []StatusItem) error {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("status[%d]: %w", i, err)
		}
	}
	return nil
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
