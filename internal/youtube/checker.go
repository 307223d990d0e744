package youtube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
)

const (
	StatusLive     = "LIVE"
	StatusUpcoming = "UPCOMING"
	StatusOff      = "OFF"

	// watch pages are large; the live markers appear in the initial player
	// response near the top.
	maxBodyBytes = 4 << 20
)

var (
	liveMarkers = [][]byte{
		[]byte("islivecontent"),
		[]byte(`"islive"`),
		[]byte(`"is_live"`),
	}
	upcomingMarker   = []byte("upcoming")
	livestreamMarker = []byte("livestream")
)

// Result is the outcome of one watch-page probe.
type Result struct {
	IsLive     bool
	LiveStatus string // empty when unknown
	Note       string // empty on a successful probe
}

// StatusItem converts the result to its wire form.
func (r Result) StatusItem(videoID string, checkedAt time.Time) models.StatusItem {
	return models.StatusItem{
		VideoID:    videoID,
		IsLiveNow:  r.IsLive,
		LiveStatus: models.StringPtr(r.LiveStatus),
		CheckedAt:  checkedAt,
		Note:       models.StringPtr(r.Note),
	}
}

// Checker fetches watch pages and classifies them by marker strings.
type Checker struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
	watchURL       func(videoID string) string
}

// CheckerOption customises a Checker.
type CheckerOption func(*Checker)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) CheckerOption {
	return func(ch *Checker) { ch.client = c }
}

// WithWatchURL overrides the page location, used to point the checker at a
// local server.
func WithWatchURL(fn func(videoID string) string) CheckerOption {
	return func(ch *Checker) { ch.watchURL = fn }
}

func NewChecker(cfg config.PollingConfig, opts ...CheckerOption) *Checker {
	c := &Checker{
		client:         &http.Client{Timeout: cfg.RequestTimeout},
		userAgent:      cfg.UserAgent,
		acceptLanguage: cfg.AcceptLanguage,
		watchURL:       WatchURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check probes one video. It never returns an error: transport failures are
// reported through Note with an "error: " prefix.
func (c *Checker) Check(ctx context.Context, videoID string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.watchURL(videoID), nil)
	if err != nil {
		return Result{Note: fmt.Sprintf("error: %v", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.acceptLanguage != "" {
		req.Header.Set("Accept-Language", c.acceptLanguage)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Note: fmt.Sprintf("error: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Note: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{Note: fmt.Sprintf("error: %v", err)}
	}
	return Classify(body)
}

// Classify inspects a watch page body.
func Classify(body []byte) Result {
	lower := bytes.ToLower(body)
	for _, m := range liveMarkers {
		if bytes.Contains(lower, m) {
			return Result{IsLive: true, LiveStatus: StatusLive}
		}
	}
	if bytes.Contains(lower, upcomingMarker) && bytes.Contains(lower, livestreamMarker) {
		return Result{LiveStatus: StatusUpcoming}
	}
	return Result{LiveStatus: StatusOff}
}
