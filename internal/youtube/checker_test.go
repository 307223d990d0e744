package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
)

func newTestChecker(t *testing.T, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.PollingConfig{
		RequestTimeout: 2 * time.Second,
		UserAgent:      "Mozilla/5.0 (compatible; YTLiveMonitor/1.0)",
		AcceptLanguage: "zh-TW,zh;q=0.9,en;q=0.8",
	}
	return NewChecker(cfg, WithWatchURL(func(id string) string { return srv.URL + "/watch?v=" + id }))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Result
	}{
		{"isLiveContent", `{"isLiveContent":true}`, Result{IsLive: true, LiveStatus: StatusLive}},
		{"quoted isLive", `"isLive":true`, Result{IsLive: true, LiveStatus: StatusLive}},
		{"is_live", `{"IS_LIVE": 1}`, Result{IsLive: true, LiveStatus: StatusLive}},
		{"upcoming", `"upcomingEventData" ... "isLiveStream"`, Result{LiveStatus: StatusUpcoming}},
		{"upcoming without livestream", `upcoming premiere`, Result{LiveStatus: StatusOff}},
		{"plain video", `<html>just a video</html>`, Result{LiveStatus: StatusOff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.body)))
		})
	}
}

func TestCheckSendsHeaders(t *testing.T) {
	var gotUA, gotLang, gotV string
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotLang = r.Header.Get("Accept-Language")
		gotV = r.URL.Query().Get("v")
		_, _ = w.Write([]byte(`<script>var ytInitialPlayerResponse = {"isLiveContent":true}</script>`))
	})

	res := c.Check(context.Background(), "dQw4w9WgXcQ")

	assert.Equal(t, Result{IsLive: true, LiveStatus: StatusLive}, res)
	assert.Equal(t, "Mozilla/5.0 (compatible; YTLiveMonitor/1.0)", gotUA)
	assert.Equal(t, "zh-TW,zh;q=0.9,en;q=0.8", gotLang)
	assert.Equal(t, "dQw4w9WgXcQ", gotV)
}

func TestCheckNon200(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	res := c.Check(context.Background(), "dQw4w9WgXcQ")
	assert.False(t, res.IsLive)
	assert.Empty(t, res.LiveStatus)
	assert.Equal(t, "HTTP 429", res.Note)
}

func TestCheckTransportFailure(t *testing.T) {
	c := NewChecker(config.PollingConfig{RequestTimeout: time.Second},
		WithWatchURL(func(string) string { return "http://127.0.0.1:1/watch" }))

	res := c.Check(context.Background(), "dQw4w9WgXcQ")
	assert.False(t, res.IsLive)
	assert.Contains(t, res.Note, "error: ")
}

func TestResultStatusItem(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	item := Result{Note: "HTTP 500"}.StatusItem("dQw4w9WgXcQ", at)
	require.NotNil(t, item.Note)
	assert.Equal(t, "HTTP 500", *item.Note)
	assert.Nil(t, item.LiveStatus)
	assert.Equal(t, at, item.CheckedAt)

	item = Result{IsLive: true, LiveStatus: StatusLive}.StatusItem("dQw4w9WgXcQ", at)
	assert.True(t, item.IsLiveNow)
	assert.Nil(t, item.Note)
}
