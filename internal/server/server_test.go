package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/errors"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/store/sqlite"
	"github.com/nwchenyw/tw-live-frontend/pkg/version"
)

func newTestServer(t *testing.T, cfg *config.ServerConfig) (*Server, *sqlite.Store, *httptest.Server) {
	t.Helper()
	if cfg == nil {
		cfg = &config.ServerConfig{CORSOrigins: []string{"*"}}
	}

	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	s := New(cfg, log, st, "sqlite")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, st, ts
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestVideoLifecycle(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	var videos []models.VideoItem
	resp := doJSON(t, http.MethodGet, ts.URL+"/videos", nil, &videos)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, videos)

	name := "Lofi radio"
	var added models.VideoItem
	resp = doJSON(t, http.MethodPost, ts.URL+"/videos",
		models.VideoCreate{WatchURL: " https://youtu.be/jfKfPfyJRdk ", Name: &name}, &added)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jfKfPfyJRdk", added.VideoID)
	assert.Equal(t, "Lofi radio", models.Deref(added.Name))

	var unnamed models.VideoItem
	resp = doJSON(t, http.MethodPost, ts.URL+"/videos", models.VideoCreate{WatchURL: "dQw4w9WgXcQ"}, &unnamed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "dQw4w9WgXcQ", unnamed.VideoID)
	assert.Nil(t, unnamed.Name, "name is omitted when none was given")

	resp = doJSON(t, http.MethodGet, ts.URL+"/videos", nil, &videos)
	require.Len(t, videos, 2)
	assert.Equal(t, "jfKfPfyJRdk", videos[0].VideoID)
	assert.Equal(t, "dQw4w9WgXcQ", videos[1].VideoID)

	var removed models.VideoRemoved
	resp = doJSON(t, http.MethodDelete, ts.URL+"/videos/jfKfPfyJRdk", nil, &removed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jfKfPfyJRdk", removed.Removed)

	var errResp errors.ErrorResponse
	resp = doJSON(t, http.MethodDelete, ts.URL+"/videos/jfKfPfyJRdk", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", errResp.Detail)
}

func TestAddVideoValidation(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantDetail string
	}{
		{"unparsable url", models.VideoCreate{WatchURL: "https://vimeo.com/123"}, http.StatusBadRequest, "watch_url 無法解析成 11 碼 video_id"},
		{"missing watch_url", map[string]string{"name": "x"}, http.StatusUnprocessableEntity, "watch_url is required"},
		{"not json", "just a string", http.StatusUnprocessableEntity, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp errors.ErrorResponse
			resp := doJSON(t, http.MethodPost, ts.URL+"/videos", tt.body, &errResp)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantDetail, errResp.Detail)
			assert.Equal(t, errors.ErrorTypeValidation, errResp.Error.Type)
		})
	}
}

func TestAddVideoUnparsableEchoesInput(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	var errResp errors.ErrorResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/videos", models.VideoCreate{WatchURL: "not a video"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNPARSABLE_WATCH_URL", errResp.Error.Code)
	assert.Equal(t, "not a video", errResp.Error.Details["watch_url"])
}

func TestStatusAndHealthz(t *testing.T) {
	_, st, ts := newTestServer(t, nil)
	ctx := context.Background()

	_, _, err := st.AddVideo(ctx, "dQw4w9WgXcQ", "dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	_, _, err = st.AddVideo(ctx, "jfKfPfyJRdk", "jfKfPfyJRdk", nil)
	require.NoError(t, err)
	live := "LIVE"
	require.NoError(t, st.SaveStatus(ctx, models.StatusItem{
		VideoID: "jfKfPfyJRdk", IsLiveNow: true, LiveStatus: &live,
		CheckedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}))

	var statuses []models.StatusItem
	resp := doJSON(t, http.MethodGet, ts.URL+"/status", nil, &statuses)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].IsLiveNow)
	require.NoError(t, models.ValidateStatuses(statuses))

	var h models.Health
	resp = doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &h)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.Health{OK: true, Watching: 2, Cached: 1}, h)
}

func TestHealthzStoreDown(t *testing.T) {
	_, st, ts := newTestServer(t, nil)
	require.NoError(t, st.Close())

	var errResp errors.ErrorResponse
	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &errResp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, errResp.Detail, "db error")
}

func TestOperationalEndpoints(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	var info version.Info
	resp := doJSON(t, http.MethodGet, ts.URL+"/version", nil, &info)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, version.Product, info.Product)

	resp = doJSON(t, http.MethodGet, ts.URL+"/", nil, &info)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "root falls back to version info without a static dir")

	resp = doJSON(t, http.MethodGet, ts.URL+"/live", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var errResp errors.ErrorResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/nope", nil, &errResp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errors.ErrorTypeNotFound, errResp.Error.Type)

	resp = doJSON(t, http.MethodPut, ts.URL+"/videos", nil, &errResp)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>tw-live</h1>"), 0o644))
	_, _, ts := newTestServer(t, &config.ServerConfig{StaticDir: dir})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/static/index.html", resp.Header.Get("Location"))

	resp, err = http.Get(ts.URL + "/static/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "tw-live")
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		_, _, ts := newTestServer(t, nil)

		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/videos/abc", nil)
		req.Header.Set("Origin", "https://dash.example")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		_, _, ts := newTestServer(t, &config.ServerConfig{CORSOrigins: []string{"https://dash.example"}})

		for origin, want := range map[string]string{
			"https://dash.example": "https://dash.example",
			"https://evil.example": "",
		} {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/videos", nil)
			req.Header.Set("Origin", origin)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
		}
	})
}

func TestRequestIDEchoed(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/videos", nil)
	req.Header.Set("X-Request-ID", "dash-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "dash-42", resp.Header.Get("X-Request-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	h := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/videos", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestServeAndShutdown(t *testing.T) {
	s, _, _ := newTestServer(t, &config.ServerConfig{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
