// Package backend is the REST client for the converter and overlay storage
// service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/metrics"
	"github.com/livesitter/livesitter/internal/overlay"
)

const maxErrorBody = 64 << 10

// Client talks to the backend REST API rooted at a base URL such as
// "http://localhost:5000/api".
type Client struct {
	base   string
	http   *http.Client
	logger zerolog.Logger
}

// New returns a client for base. httpClient carries the request timeout.
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   httpClient,
		logger: log.WithComponent("backend"),
	}
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// StartStream asks the converter to start producing HLS for req.RTSPURL.
func (c *Client) StartStream(ctx context.Context, req StartStreamRequest) (StartStreamResponse, error) {
	var out StartStreamResponse
	err := c.do(ctx, "start_stream", http.MethodPost, "/streams/start", req, &out)
	return out, err
}

// StopStream asks the converter to stop the stream and returns its message.
func (c *Client) StopStream(ctx context.Context, streamID string) (string, error) {
	var out messageResponse
	err := c.do(ctx, "stop_stream", http.MethodPost, "/streams/stop", stopStreamRequest{StreamID: streamID}, &out)
	return out.Message, err
}

// StreamStatus lists the conversions known to the backend.
func (c *Client) StreamStatus(ctx context.Context) (StreamStatus, error) {
	var out StreamStatus
	err := c.do(ctx, "stream_status", http.MethodGet, "/streams/status", nil, &out)
	return out, err
}

// Health returns nil when the backend reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	var out healthResponse
	if err := c.do(ctx, "health", http.MethodGet, "/settings/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "" && out.Status != "healthy" {
		return &Error{Kind: KindServer, Operation: "health", Status: http.StatusOK, Message: "Backend reported status " + out.Status}
	}
	return nil
}

// Ping implements health.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	return c.Health(ctx)
}

// Settings fetches the application settings.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var out settingsResponse
	err := c.do(ctx, "get_settings", http.MethodGet, "/settings/", nil, &out)
	return out.Settings, err
}

// UpdateSettings saves a partial settings change.
func (c *Client) UpdateSettings(ctx context.Context, u SettingsUpdate) error {
	return c.do(ctx, "update_settings", http.MethodPost, "/settings/", u, &messageResponse{})
}

// ListOverlays returns the active overlays.
func (c *Client) ListOverlays(ctx context.Context) ([]overlay.Overlay, error) {
	var out overlaysResponse
	if err := c.do(ctx, "list_overlays", http.MethodGet, "/overlays/", nil, &out); err != nil {
		return nil, err
	}
	return out.Overlays, nil
}

// GetOverlay fetches a single overlay.
func (c *Client) GetOverlay(ctx context.Context, id string) (overlay.Overlay, error) {
	var out overlayResponse
	err := c.do(ctx, "get_overlay", http.MethodGet, "/overlays/"+url.PathEscape(id), nil, &out)
	return out.Overlay, err
}

// CreateOverlay stores a new overlay and returns its id.
func (c *Client) CreateOverlay(ctx context.Context, req overlay.CreateRequest) (string, error) {
	var out createOverlayResponse
	if err := c.do(ctx, "create_overlay", http.MethodPost, "/overlays/", req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Kind: KindServer, Operation: "create_overlay", Status: http.StatusOK, Message: "Server returned no overlay id"}
	}
	return out.ID, nil
}

// UpdateOverlay applies a partial update.
func (c *Client) UpdateOverlay(ctx context.Context, id string, req overlay.UpdateRequest) error {
	return c.do(ctx, "update_overlay", http.MethodPut, "/overlays/"+url.PathEscape(id), req, &messageResponse{})
}

// DeleteOverlay removes an overlay.
func (c *Client) DeleteOverlay(ctx context.Context, id string) error {
	return c.do(ctx, "delete_overlay", http.MethodDelete, "/overlays/"+url.PathEscape(id), nil, &messageResponse{})
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := log.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	err = c.roundTrip(ctx, op, req, out)
	result := "ok"
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			result = be.Kind.String()
		} else {
			result = "canceled"
		}
	}
	metrics.RecordBackendRequest(op, result)

	logger := log.WithContext(ctx, c.logger)
	if err != nil {
		var be *Error
		detail := err.Error()
		if errors.As(err, &be) {
			detail = be.Detail()
		}
		logger.Warn().
			Str(log.FieldEvent, "backend.request_failed").
			Str(log.FieldOperation, op).
			Str("result", result).
			Dur("duration", time.Since(start)).
			Msg(detail)
		return err
	}
	logger.Debug().
		Str(log.FieldEvent, "backend.request").
		Str(log.FieldOperation, op).
		Dur("duration", time.Since(start)).
		Msg("backend request completed")
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(ctx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Kind:      KindServer,
			Operation: op,
			Status:    resp.StatusCode,
			Message:   serverMessage(resp.StatusCode, raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return classifyTransportError(ctx, op, err)
		}
		return &Error{
			Kind:      KindServer,
			Operation: op,
			Status:    resp.StatusCode,
			Message:   "Invalid response from server.",
			Err:       err,
		}
	}
	return nil
}

func serverMessage(status int, raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return fmt.Sprintf("Server error: %d", status)
}

// classifyTransportError maps a failed exchange to timeout or no-response.
// A cancelled caller context is not a transport failure and is returned as is.
func classifyTransportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("backend: %s: %w", op, ctx.Err())
	}
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Operation: op, Message: MsgTimeout, Err: err}
	}
	return &Error{Kind: KindNoResponse, Operation: op, Message: MsgNoResponse, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
