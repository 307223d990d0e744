package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/errors"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/server"
	"github.com/nwchenyw/tw-live-frontend/internal/store/sqlite"
)

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := New(ts.URL)
	require.NoError(t, err)
	return c
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestNew(t *testing.T) {
	c, err := New(" http://127.0.0.1:8000/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", c.BaseURL())

	for _, bad := range []string{"", "127.0.0.1:8000", "ftp://host", "http://"} {
		_, err := New(bad)
		assert.Error(t, err, bad)
	}
}

func TestListVideos(t *testing.T) {
	c := newClient(t, respond(http.StatusOK, `[{"video_id":"abc12345678","name":"News"},{"video_id":"xyz98765432"}]`))

	videos, err := c.ListVideos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "abc12345678", videos[0].VideoID)
	assert.Equal(t, "News", models.Deref(videos[0].Name))
	assert.Nil(t, videos[1].Name)
}

func TestListStatus(t *testing.T) {
	c := newClient(t, respond(http.StatusOK,
		`[{"video_id":"v1","is_live_now":true,"live_status":"LIVE","checked_at":"2024-05-01T12:00:00Z"}]`))

	statuses, err := c.ListStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].IsLiveNow)
	assert.Equal(t, "LIVE", models.Deref(statuses[0].LiveStatus))
	assert.True(t, statuses[0].CheckedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestListFailuresAreTransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		call    func(*Client) error
	}{
		{
			name:    "videos non-2xx",
			handler: respond(http.StatusInternalServerError, `{"detail":"boom"}`),
			call:    func(c *Client) error { _, err := c.ListVideos(context.Background()); return err },
		},
		{
			name:    "videos undecodable",
			handler: respond(http.StatusOK, `<html>`),
			call:    func(c *Client) error { _, err := c.ListVideos(context.Background()); return err },
		},
		{
			name:    "videos missing id",
			handler: respond(http.StatusOK, `[{"name":"x"}]`),
			call:    func(c *Client) error { _, err := c.ListVideos(context.Background()); return err },
		},
		{
			name:    "status wrong shape",
			handler: respond(http.StatusOK, `{"video_id":"v1"}`),
			call:    func(c *Client) error { _, err := c.ListStatus(context.Background()); return err },
		},
		{
			name:    "status missing checked_at",
			handler: respond(http.StatusOK, `[{"video_id":"v1","is_live_now":false}]`),
			call:    func(c *Client) error { _, err := c.ListStatus(context.Background()); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(newClient(t, tt.handler))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeTransport), err.Error())
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	c, err := New(ts.URL)
	require.NoError(t, err)
	ts.Close()

	_, err = c.ListVideos(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))

	err = c.DeleteVideo(context.Background(), "abc12345678")
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))

	assert.Equal(t, models.Health{}, c.CheckHealth(context.Background()))
}

func TestCheckHealth(t *testing.T) {
	c := newClient(t, respond(http.StatusOK, `{"ok":true,"watching":3,"cached":2}`))
	assert.Equal(t, models.Health{OK: true, Watching: 3, Cached: 2}, c.CheckHealth(context.Background()))

	c = newClient(t, respond(http.StatusInternalServerError, `{"detail":"db error: closed"}`))
	assert.Equal(t, models.Health{}, c.CheckHealth(context.Background()))

	c = newClient(t, respond(http.StatusOK, `not json`))
	assert.Equal(t, models.Health{}, c.CheckHealth(context.Background()))
}

func TestAddVideo(t *testing.T) {
	bodies := make(chan models.VideoCreate, 2)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got models.VideoCreate
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		bodies <- got
		respond(http.StatusOK, `{"video_id":"jfKfPfyJRdk","name":"Lofi"}`)(w, r)
	}))

	name := "  Lofi "
	item, err := c.AddVideo(context.Background(), " https://youtu.be/jfKfPfyJRdk ", &name)
	require.NoError(t, err)
	assert.Equal(t, "jfKfPfyJRdk", item.VideoID)
	got := <-bodies
	assert.Equal(t, "https://youtu.be/jfKfPfyJRdk", got.WatchURL)
	assert.Equal(t, "Lofi", models.Deref(got.Name))

	blank := "   "
	_, err = c.AddVideo(context.Background(), "jfKfPfyJRdk", &blank)
	require.NoError(t, err)
	got = <-bodies
	assert.Nil(t, got.Name)
}

func TestAddVideoRejectsEmptyInputLocally(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := c.AddVideo(context.Background(), "   ", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	err = c.DeleteVideo(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Zero(t, calls.Load())
}

func TestMutationErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errors.ErrorType
		wantMsg  string
	}{
		{"detail string", 400, `{"detail":"watch_url 無法解析成 11 碼 video_id"}`, errors.ErrorTypeValidation, "watch_url 無法解析成 11 碼 video_id"},
		{"validation list", 422, `{"detail":[{"loc":["body","watch_url"],"msg":"field required"}]}`, errors.ErrorTypeValidation, "field required"},
		{"error envelope", 422, `{"error":{"type":"VALIDATION_ERROR","message":"invalid request body"}}`, errors.ErrorTypeValidation, "invalid request body"},
		{"not found", 404, `{"detail":"not found"}`, errors.ErrorTypeNotFound, "not found"},
		{"not found empty body", 404, ``, errors.ErrorTypeNotFound, "not found"},
		{"server error with detail", 500, `{"detail":"db error: locked"}`, errors.ErrorTypeTransport, "db error: locked"},
		{"server error bare", 502, `<html>bad gateway</html>`, errors.ErrorTypeTransport, "HTTP 502"},
		{"validation bare", 400, ``, errors.ErrorTypeValidation, "HTTP 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, respond(tt.status, tt.body))

			_, err := c.AddVideo(context.Background(), "abc12345678", nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), err.Error())
			assert.Equal(t, tt.wantMsg, errors.Message(err))

			err = c.DeleteVideo(context.Background(), "abc12345678")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.wantType), err.Error())
			assert.Equal(t, tt.wantMsg, errors.Message(err))
		})
	}
}

func TestAddVideoInvalidResponse(t *testing.T) {
	c := newClient(t, respond(http.StatusOK, `{"name":"no id"}`))
	_, err := c.AddVideo(context.Background(), "abc12345678", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestDeleteVideoEscapesPath(t *testing.T) {
	paths := make(chan string, 1)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths <- r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteVideo(context.Background(), "a/b?c"))
	assert.Equal(t, "/videos/a%2Fb%3Fc", <-paths)
}

func TestRequestHeaders(t *testing.T) {
	ids := make(chan string, 2)
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "tw-live/")
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		ids <- r.Header.Get(logger.RequestIDHeader)
		respond(http.StatusOK, `[]`)(w, r)
	}))

	_, err := c.ListVideos(context.Background())
	require.NoError(t, err)
	_, err = c.ListVideos(context.Background())
	require.NoError(t, err)

	first, second := <-ids, <-ids
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListStatus(ctx)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestAgainstBackend(t *testing.T) {
	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "gw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := server.New(&config.ServerConfig{}, log, st, "sqlite")
	c := newClient(t, srv.Handler())
	ctx := context.Background()

	item, err := c.AddVideo(ctx, "https://www.youtube.com/watch?v=jfKfPfyJRdk", models.StringPtr("Lofi"))
	require.NoError(t, err)
	assert.Equal(t, "jfKfPfyJRdk", item.VideoID)

	_, err = c.AddVideo(ctx, "not a video", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, errors.Message(err), "video_id")

	videos, err := c.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "Lofi", models.Deref(videos[0].Name))

	statuses, err := c.ListStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)

	h := c.CheckHealth(ctx)
	assert.True(t, h.OK)
	assert.Equal(t, 1, h.Watching)

	require.NoError(t, c.DeleteVideo(ctx, "jfKfPfyJRdk"))
	err = c.DeleteVideo(ctx, "jfKfPfyJRdk")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Equal(t, "not found", errors.Message(err))
}
