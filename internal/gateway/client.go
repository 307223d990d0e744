// Package gateway is the dashboard's typed client for the monitor backend API.
// Every response body is decoded into an explicit schema and validated before
// it is handed to callers; anything else surfaces as a TRANSPORT_ERROR.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nwchenyw/tw-live-frontend/internal/errors"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/pkg/version"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client talks to the backend over HTTP. It never retries; retry policy is
// left to the refresh scheduler.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client rooted at baseURL, e.g. http://127.0.0.1:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.NewNullLogger(),
		userAgent:  version.GetInfo().UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListVideos fetches GET /videos.
func (c *Client) ListVideos(ctx context.Context) ([]models.VideoItem, error) {
	var videos []models.VideoItem
	if err := c.getJSON(ctx, "/videos", &videos); err != nil {
		return nil, err
	}
	if err := models.ValidateVideos(videos); err != nil {
		return nil, errors.WrapTransportError(err, "GET /videos: invalid response")
	}
	return videos, nil
}

// ListStatus fetches GET /status.
func (c *Client) ListStatus(ctx context.Context) ([]models.StatusItem, error) {
	var statuses []models.StatusItem
	if err := c.getJSON(ctx, "/status", &statuses); err != nil {
		return nil, err
	}
	if err := models.ValidateStatuses(statuses); err != nil {
		return nil, errors.WrapTransportError(err, "GET /status: invalid response")
	}
	return statuses, nil
}

// CheckHealth fetches GET /healthz. It never fails: any problem reads as
// {ok:false, watching:0, cached:0} so a sick health endpoint cannot block a
// refresh.
func (c *Client) CheckHealth(ctx context.Context) models.Health {
	var h models.Health
	if err := c.getJSON(ctx, "/healthz", &h); err != nil {
		c.logger.WithError(err).Debug("Health check failed")
		return models.Health{}
	}
	return h
}

// AddVideo registers a video by bare ID or watch URL. Backend rejections keep
// the server's detail message: 400 and 422 become VALIDATION_ERROR, 404 becomes
// NOT_FOUND.
func (c *Client) AddVideo(ctx context.Context, idOrURL string, name *string) (models.VideoItem, error) {
	idOrURL = strings.TrimSpace(idOrURL)
	if idOrURL == "" {
		return models.VideoItem{}, errors.NewValidationError("video id or url is required")
	}
	if name != nil {
		name = models.StringPtr(strings.TrimSpace(*name))
	}

	body, err := json.Marshal(models.VideoCreate{WatchURL: idOrURL, Name: name})
	if err != nil {
		return models.VideoItem{}, errors.WrapInternalError(err, "encode request")
	}

	status, data, err := c.do(ctx, http.MethodPost, "/videos", body)
	if err != nil {
		return models.VideoItem{}, err
	}
	if !success(status) {
		return models.VideoItem{}, mutationError(status, data)
	}

	var item models.VideoItem
	if err := json.Unmarshal(data, &item); err != nil {
		return models.VideoItem{}, errors.WrapTransportError(err, "POST /videos: undecodable response")
	}
	if err := item.Validate(); err != nil {
		return models.VideoItem{}, errors.WrapTransportError(err, "POST /videos: invalid response")
	}
	return item, nil
}

// DeleteVideo removes a registration. Any 2xx is success; the body is ignored.
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	if videoID == "" {
		return errors.NewValidationError("video id is required")
	}
	status, data, err := c.do(ctx, http.MethodDelete, "/videos/"+url.PathEscape(videoID), nil)
	if err != nil {
		return err
	}
	if !success(status) {
		return mutationError(status, data)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	status, data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if !success(status) {
		return errors.NewTransportError(fmt.Sprintf("GET %s: HTTP %d", path, status), status)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WrapTransportError(err, fmt.Sprintf("GET %s: undecodable response", path))
	}
	return nil
}

// do performs one request and returns the status and the (bounded) body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	endpoint := c.baseURL.String() + path

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return 0, nil, errors.WrapTransportError(err, fmt.Sprintf("%s %s: build request", method, path))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(logger.RequestIDHeader, requestID)

	log := c.logger.WithFields(map[string]interface{}{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("Request failed")
		return 0, nil, errors.WrapTransportError(err, fmt.Sprintf("%s %s: request failed", method, path))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, errors.WrapTransportError(err, fmt.Sprintf("%s %s: read response", method, path))
	}

	log.WithFields(map[string]interface{}{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Request completed")
	return resp.StatusCode, data, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// mutationError maps a rejected add/delete onto the error taxonomy.
func mutationError(status int, body []byte) error {
	msg := detailMessage(body)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
		return errors.New(errors.ErrorTypeValidation, msg, status)
	case http.StatusNotFound:
		if msg == "" {
			msg = "not found"
		}
		return errors.New(errors.ErrorTypeNotFound, msg, status)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return errors.NewTransportError(msg, status)
}

// detailMessage extracts the human-readable reason from an error body. It
// understands a plain {"detail": "..."}, a validation list
// {"detail": [{"msg": "..."}]} and the {"error": {"message": "..."}} envelope.
func detailMessage(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}

	if len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil && s != "" {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(env.Detail, &list) == nil && len(list) > 0 && list[0].Msg != "" {
			return list[0].Msg
		}
	}
	if env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return ""
}
