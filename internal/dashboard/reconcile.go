// Package dashboard is the polling and reconciliation engine behind the
// monitor dashboard: it merges registrations with status records into rows,
// keeps one canonical snapshot, and drives refreshes on a timer.
package dashboard

import (
	"strings"
	"time"

	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/youtube"
)

// Status is the display classification of a row.
type Status string

const (
	StatusLive    Status = "LIVE"
	StatusOffline Status = "OFFLINE"
	StatusError   Status = "ERROR"
)

// NotYetChecked labels rows without a status record.
const NotYetChecked = "尚未檢測"

// DefaultTimeFormat renders CheckedAt in LastCheckedLabel.
const DefaultTimeFormat = "2006/01/02 15:04:05"

// Row is one line of the monitor table. Rows are rebuilt on every pass and
// never modified afterwards.
type Row struct {
	ID               RowID
	VideoID          string
	DisplayName      string // empty when the registration has no name
	ThumbnailURL     string
	Status           Status
	DetailLabel      string
	LastCheckedLabel string
}

// ReconcileOptions controls how timestamps are labelled.
type ReconcileOptions struct {
	Location   *time.Location // nil means time.Local
	TimeFormat string         // empty means DefaultTimeFormat
}

// Reconcile joins videos with statuses into one row per video, in video order.
// When a video has several status records the last one wins. It has no side
// effects; equal inputs give equal outputs.
func Reconcile(videos []models.VideoItem, statuses []models.StatusItem, opts ReconcileOptions) []Row {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	layout := opts.TimeFormat
	if layout == "" {
		layout = DefaultTimeFormat
	}

	byID := make(map[string]models.StatusItem, len(statuses))
	for _, s := range statuses {
		byID[s.VideoID] = s
	}

	rows := make([]Row, 0, len(videos))
	for i, v := range videos {
		row := Row{
			ID:           RowID{VideoID: v.VideoID, Index: i},
			VideoID:      v.VideoID,
			DisplayName:  models.Deref(v.Name),
			ThumbnailURL: youtube.ThumbnailURL(v.VideoID),
		}

		s, ok := byID[v.VideoID]
		if !ok {
			row.Status = StatusOffline
			row.DetailLabel = NotYetChecked
			row.LastCheckedLabel = NotYetChecked
			rows = append(rows, row)
			continue
		}

		row.Status = classify(s)
		row.DetailLabel = detail(s)
		row.LastCheckedLabel = s.CheckedAt.In(loc).Format(layout)
		rows = append(rows, row)
	}
	return rows
}

// classify: live wins over an error note; the note match is case-sensitive.
func classify(s models.StatusItem) Status {
	switch {
	case s.IsLiveNow:
		return StatusLive
	case strings.Contains(models.Deref(s.Note), "error"):
		return StatusError
	default:
		return StatusOffline
	}
}

func detail(s models.StatusItem) string {
	if l := models.Deref(s.LiveStatus); l != "" {
		return l
	}
	if n := models.Deref(s.Note); n != "" {
		return n
	}
	return NotYetChecked
}
