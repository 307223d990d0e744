// Package store persists registered videos and their latest live status.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nwchenyw/tw-live-frontend/internal/models"
)

// ErrNotFound is returned when a video is not registered.
var ErrNotFound = errors.New("not found")

// Registration is one watched video. Raw keeps the input exactly as submitted
// (bare ID or URL).
type Registration struct {
	VideoID string    `json:"video_id"`
	Raw     string    `json:"raw"`
	Name    *string   `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Item returns the wire form.
func (r Registration) Item() models.VideoItem {
	return models.VideoItem{VideoID: r.VideoID, Name: r.Name}
}

// Store is implemented by the redis and sqlite backends.
type Store interface {
	// ListVideos returns registrations in insertion order.
	ListVideos(ctx context.Context) ([]Registration, error)
	// AddVideo inserts videoID if missing and always replaces its display name.
	// created reports whether a new registration was made.
	AddVideo(ctx context.Context, raw, videoID string, name *string) (reg Registration, created bool, err error)
	// DeleteVideo removes the registration and its cached status.
	DeleteVideo(ctx context.Context, videoID string) error

	// SaveStatus records the latest check. Results for videos that are no
	// longer registered are dropped.
	SaveStatus(ctx context.Context, status models.StatusItem) error
	ListStatus(ctx context.Context) ([]models.StatusItem, error)

	Counts(ctx context.Context) (watching, cached int, err error)
	Ping(ctx context.Context) error
	Close() error
}
