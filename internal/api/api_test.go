package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livesitter/livesitter/internal/api/middleware"
	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/coordinator"
	"github.com/livesitter/livesitter/internal/domain/session/manager"
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/health"
	"github.com/livesitter/livesitter/internal/hls"
	"github.com/livesitter/livesitter/internal/overlay"
)

type testEnv struct {
	mock   *backend.MockServer
	engine *manager.Engine
	board  *overlay.Board
	srv    *httptest.Server
}

func newTestEnv(t *testing.T, autoplay bool, opts ...func(*Config)) *testEnv {
	t.Helper()
	mock := backend.NewMockServer()
	t.Cleanup(mock.Close)

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	httpClient := &http.Client{Transport: transport, Timeout: 2 * time.Second}

	fast := hls.Budget{MaxAttempts: 2, Delay: 5 * time.Millisecond, Timeout: time.Second}
	player := hls.NewClient(httpClient,
		hls.WithRetryPolicy(hls.RetryPolicy{Manifest: fast, Level: fast, Segment: fast}),
		hls.WithSurfaceFactory(hls.ProbeSurfaceFactory(autoplay)),
		hls.WithLogger(zerolog.Nop()))
	engine := manager.NewEngine(player, manager.WithLogger(zerolog.Nop()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = engine.Close(ctx)
	})

	client := backend.New(mock.URL, httpClient)
	board := overlay.NewBoard(client, overlay.WithLogger(zerolog.Nop()))
	t.Cleanup(board.Close)

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewBackendChecker(health.NewSignal()))

	cfg := Config{
		Stack:         middleware.StackConfig{EnableMetrics: true},
		FrameInterval: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := New(cfg, Deps{
		Streams:  coordinator.New(client, engine, mock.URL),
		Sessions: engine,
		Overlays: board,
		Settings: client,
		Health:   hm,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{mock: mock, engine: engine, board: board, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func errorBody(t *testing.T, raw []byte) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body["error"]
}

func (e *testEnv) waitState(t *testing.T, id string, want model.SessionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := e.engine.Get(id)
		return err == nil && rec.State == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStreamLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, true)

	resp, raw := env.do(t, http.MethodPost, "/api/v1/streams", map[string]string{
		"rtsp_url":  "rtsp://camera.local/stream1",
		"stream_id": "cam1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var rec model.SessionRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "cam1", rec.SessionID)
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))

	env.waitState(t, "cam1", model.SessionPlaying)

	resp, raw = env.do(t, http.MethodGet, "/api/v1/streams/cam1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, model.SessionPlaying, rec.State)

	resp, raw = env.do(t, http.MethodPost, "/api/v1/streams/cam1/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, model.SessionPaused, rec.State)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/streams/cam1/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "retry requires ERROR")

	resp, raw = env.do(t, http.MethodGet, "/api/v1/streams/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status backend.StreamStatus
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.Equal(t, 1, status.TotalStreams)

	resp, raw = env.do(t, http.MethodPost, "/api/v1/streams/cam1/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var stop struct {
		Message string               `json:"message"`
		Session *model.SessionRecord `json:"session"`
	}
	require.NoError(t, json.Unmarshal(raw, &stop))
	assert.Equal(t, "Stream stopped successfully", stop.Message)
	require.NotNil(t, stop.Session)
	assert.Equal(t, model.SessionStopped, stop.Session.State)

	resp, raw = env.do(t, http.MethodGet, "/api/v1/streams", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sessions []model.SessionRecord `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Sessions, 1)
}

func TestStartStreamErrors(t *testing.T) {
	env := newTestEnv(t, true)

	resp, raw := env.do(t, http.MethodPost, "/api/v1/streams", map[string]string{"rtsp_url": "http://nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorBody(t, raw), "RTSP protocol")

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/streams", strings.NewReader("{"))
	require.NoError(t, err)
	r, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	env.mock.SetFailures("POST /streams/start", 1)
	resp, raw = env.do(t, http.MethodPost, "/api/v1/streams", map[string]string{"rtsp_url": "rtsp://camera.local/s"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "injected failure", errorBody(t, raw))

	env.mock.SetDelay("POST /streams/start", 3*time.Second)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/streams", map[string]string{"rtsp_url": "rtsp://camera.local/s"})
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, true)
	for _, path := range []string{"/api/v1/streams/ghost/play", "/api/v1/streams/ghost/reset"} {
		resp, _ := env.do(t, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp, _ := env.do(t, http.MethodGet, "/api/v1/streams/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/streams/ghost/stop", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "backend 404 with no local session")
}

func TestAutoplayBlockedPlayReturnsConflict(t *testing.T) {
	env := newTestEnv(t, false)
	resp, raw := env.do(t, http.MethodPost, "/api/v1/streams", map[string]string{
		"rtsp_url":  "rtsp://camera.local/stream1",
		"stream_id": "cam1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	env.waitState(t, "cam1", model.SessionReady)

	resp, raw = env.do(t, http.MethodPost, "/api/v1/streams/cam1/play", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw), "a user play is a gesture")
	var rec model.SessionRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, model.SessionPlaying, rec.State)
	assert.Empty(t, rec.Notice)
}

func TestOverlayCRUDAndFrame(t *testing.T) {
	env := newTestEnv(t, true)

	resp, raw := env.do(t, http.MethodPost, "/api/v1/overlays", map[string]any{
		"name":     "Score",
		"type":     "text",
		"content":  "<b>2-1</b>",
		"position": map[string]float64{"x": 150, "y": 10},
		"size":     map[string]float64{"width": 200, "height": 40},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created map[string]string
	require.NoError(t, json.Unmarshal(raw, &created))
	id := created["id"]
	require.NotEmpty(t, id)

	resp, raw = env.do(t, http.MethodGet, "/api/v1/overlays", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list overlaysResponse
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Overlays, 1)
	assert.Equal(t, 100.0, list.Overlays[0].Position.X, "position is clamped")

	resp, raw = env.do(t, http.MethodGet, "/api/v1/frame?width=1000&height=500", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var frame overlay.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	require.Len(t, frame.Items, 1)
	assert.Equal(t, "<b>2-1</b>", frame.Items[0].Text)
	assert.Equal(t, 1000.0, frame.Items[0].X)
	assert.Nil(t, frame.Clock)

	resp, _ = env.do(t, http.MethodPut, "/api/v1/overlays/"+id, map[string]any{"is_active": false})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, raw = env.do(t, http.MethodGet, "/api/v1/frame", nil)
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Empty(t, frame.Items)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/overlays/"+id+"/image-failed", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "text overlays cannot fail to load")

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/overlays/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/overlays/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOverlayValidationAndViewport(t *testing.T) {
	env := newTestEnv(t, true)

	resp, raw := env.do(t, http.MethodPost, "/api/v1/overlays", map[string]any{
		"name":    "Logo",
		"type":    "image",
		"content": "https://example.com/logo.png",
		"size":    map[string]float64{"width": 0, "height": 40},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorBody(t, raw), "size")
	assert.Zero(t, env.mock.Requests("POST /overlays/{$}"))

	resp, _ = env.do(t, http.MethodGet, "/api/v1/frame?width=-5", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/frame?session=ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFrameIncludesSessionClock(t *testing.T) {
	env := newTestEnv(t, true)
	resp, raw := env.do(t, http.MethodPost, "/api/v1/streams", map[string]string{
		"rtsp_url":  "rtsp://camera.local/stream1",
		"stream_id": "cam1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	env.waitState(t, "cam1", model.SessionPlaying)

	resp, raw = env.do(t, http.MethodGet, "/api/v1/frame?session=cam1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var frame overlay.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	require.NotNil(t, frame.Clock)
	assert.Equal(t, "cam1", frame.Clock.SessionID)
	assert.Equal(t, string(model.SessionPlaying), frame.Clock.State)
	assert.Equal(t, 1280.0, frame.Viewport.Width)
}

func TestFrameSocketPushesFrames(t *testing.T) {
	env := newTestEnv(t, true)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/frames/ws?width=640&height=360"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var first, second overlay.Frame
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, 640.0, first.Viewport.Width)
	assert.Greater(t, second.Tick, first.Tick)
}

func TestFrameSocketOutlivesPongWait(t *testing.T) {
	const pongWait = 100 * time.Millisecond
	env := newTestEnv(t, true, func(c *Config) { c.PongWait = pongWait })

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/frames/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	deadline := time.Now().Add(4 * pongWait)
	for time.Now().Before(deadline) {
		var f overlay.Frame
		require.NoError(t, conn.ReadJSON(&f), "frame stream must survive past the pong wait")
	}
	assert.Positive(t, pings.Load())
}

func TestSettingsProxy(t *testing.T) {
	env := newTestEnv(t, true)

	resp, raw := env.do(t, http.MethodPost, "/api/v1/settings", map[string]any{"max_concurrent_streams": 8})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var st backend.Settings
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, 8, st.MaxConcurrentStreams)
	assert.Equal(t, backend.DefaultSettings().RetentionDays, st.RetentionDays)
}

func TestProbesAndMetrics(t *testing.T) {
	env := newTestEnv(t, true)

	resp, raw := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	resp, _ = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "an unpolled backend degrades but never unreadies")

	env.do(t, http.MethodGet, "/api/v1/streams", nil)
	resp, raw = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `livesitter_http_request_duration_seconds_count{method="GET",path="/api/v1/streams`)
}
