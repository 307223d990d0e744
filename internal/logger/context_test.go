package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	entry := logrus.New().WithField("video_id", "dQw4w9WgXcQ")

	ctx := WithLogger(context.Background(), entry)
	assert.Equal(t, "dQw4w9WgXcQ", FromContext(ctx).Data["video_id"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestContextRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithRequest(t *testing.T) {
	logger := logrus.New()

	tests := []struct {
		name    string
		headers map[string]string
		check   func(*testing.T, *logrus.Entry)
	}{
		{
			name:    "existing request ID",
			headers: map[string]string{RequestIDHeader: "existing-id", "User-Agent": "tw-live/test"},
			check: func(t *testing.T, e *logrus.Entry) {
				assert.Equal(t, "existing-id", e.Data["request_id"])
				assert.Equal(t, "tw-live/test", e.Data["user_agent"])
			},
		},
		{
			name: "generated request ID",
			check: func(t *testing.T, e *logrus.Entry) {
				assert.NotEmpty(t, e.Data["request_id"])
				assert.Equal(t, "192.0.2.1", e.Data["remote_ip"])
			},
		},
		{
			name:    "first forwarded address wins",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.9"},
			check: func(t *testing.T, e *logrus.Entry) {
				assert.Equal(t, "10.0.0.1", e.Data["remote_ip"])
			},
		},
		{
			name:    "real ip header",
			headers: map[string]string{"X-Real-IP": "10.0.0.2"},
			check: func(t *testing.T, e *logrus.Entry) {
				assert.Equal(t, "10.0.0.2", e.Data["remote_ip"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/videos", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			entry := WithRequest(logger, req)
			assert.Equal(t, "GET", entry.Data["method"])
			assert.Equal(t, "/videos", entry.Data["path"])
			tt.check(t, entry)
		})
	}
}

func TestRequestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	var seenID string
	handler := RequestLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		assert.NotNil(t, FromContext(r.Context()))
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/videos", nil))

	require.NotEmpty(t, seenID)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, seenID, rr.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), "Request completed")
	assert.Contains(t, buf.String(), `"status":201`)
}

func TestRequestLoggerMiddlewareServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	handler := RequestLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db error", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, buf.String(), "Request failed")
}

func TestResponseWriter(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, rw.StatusCode())

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusCreated, rw.StatusCode())

	n, err := rw.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
