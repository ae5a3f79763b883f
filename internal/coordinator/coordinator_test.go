package coordinator

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/domain/session/manager"
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/health"
	"github.com/livesitter/livesitter/internal/hls"
)

type harness struct {
	mock   *backend.MockServer
	engine *manager.Engine
	coord  *Coordinator
	signal *health.Signal
	poller *health.Poller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock := backend.NewMockServer()
	t.Cleanup(mock.Close)

	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	httpClient := &http.Client{Transport: transport, Timeout: 2 * time.Second}

	policy := hls.RetryPolicy{
		Manifest: hls.Budget{MaxAttempts: 2, Delay: 5 * time.Millisecond, Timeout: time.Second},
		Level:    hls.Budget{MaxAttempts: 2, Delay: 5 * time.Millisecond, Timeout: time.Second},
		Segment:  hls.Budget{MaxAttempts: 2, Delay: 5 * time.Millisecond, Timeout: time.Second},
	}
	player := hls.NewClient(httpClient, hls.WithRetryPolicy(policy), hls.WithLogger(zerolog.Nop()))
	engine := manager.NewEngine(player, manager.WithLogger(zerolog.Nop()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = engine.Close(ctx)
	})

	client := backend.New(mock.URL, httpClient)
	signal := health.NewSignal()
	return &harness{
		mock:   mock,
		engine: engine,
		coord:  New(client, engine, mock.URL, WithHealth(signal)),
		signal: signal,
		poller: health.NewPoller(client, signal, time.Hour, time.Second),
	}
}

func (h *harness) waitState(t *testing.T, id string, want model.SessionState) model.SessionRecord {
	t.Helper()
	var rec model.SessionRecord
	require.Eventually(t, func() bool {
		var err error
		rec, err = h.engine.Get(id)
		return err == nil && rec.State == want
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func TestRequestStart_PlaysStream(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rec, err := h.coord.RequestStart(ctx, "rtsp://camera.local/stream1", "cam1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStarting, rec.State)
	assert.Equal(t, h.mock.ManifestURL("cam1"), rec.Manifest)

	info, ok := h.mock.Stream("cam1")
	require.True(t, ok)
	assert.Equal(t, "rtsp://camera.local/stream1", info.RTSPURL)

	rec = h.waitState(t, "cam1", model.SessionPlaying)
	assert.Equal(t, "rtsp://camera.local/stream1", rec.Source)

	require.Eventually(t, func() bool {
		r, _ := h.engine.Get("cam1")
		return r.Position >= 10
	}, 5*time.Second, 10*time.Millisecond, "all five segments are played")

	status, err := h.coord.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalStreams)
}

func TestRequestStart_GeneratesStreamID(t *testing.T) {
	h := newHarness(t)
	rec, err := h.coord.RequestStart(context.Background(), "/srv/media/sample.mp4", "")
	require.NoError(t, err)
	assert.Regexp(t, `^stream_\d+_[0-9a-f]{9}$`, rec.SessionID)
	_, ok := h.mock.Stream(rec.SessionID)
	assert.True(t, ok)
}

func TestRequestStart_InvalidSourceNeverReachesBackend(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.RequestStart(context.Background(), "http://not-rtsp/stream", "cam1")
	require.ErrorIs(t, err, ErrInvalidSource)
	assert.Zero(t, h.mock.Requests("POST /streams/start"))
	_, err = h.engine.Get("cam1")
	assert.ErrorIs(t, err, manager.ErrSessionNotFound)
}

func TestRequestStart_BackendFailureCreatesNoSession(t *testing.T) {
	h := newHarness(t)
	h.mock.SetFailures("POST /streams/start", 1)

	_, err := h.coord.RequestStart(context.Background(), "rtsp://camera.local/stream1", "cam1")
	require.ErrorIs(t, err, backend.ErrServer)
	_, err = h.engine.Get("cam1")
	assert.ErrorIs(t, err, manager.ErrSessionNotFound)
}

func TestRequestStop_StopsLocallyEvenWhenRemoteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.RequestStart(ctx, "rtsp://camera.local/stream1", "cam1")
	require.NoError(t, err)
	h.waitState(t, "cam1", model.SessionPlaying)

	h.mock.SetFailures("POST /streams/stop", 1)
	res, err := h.coord.RequestStop(ctx, "cam1")
	require.NoError(t, err)
	require.Error(t, res.RemoteErr)
	assert.True(t, res.Found)
	assert.Equal(t, model.SessionStopped, res.Session.State)

	rec, err := h.engine.Get("cam1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStopped, rec.State)
}

func TestRequestStop_RemoteSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.RequestStart(ctx, "rtsp://camera.local/stream1", "cam1")
	require.NoError(t, err)

	res, err := h.coord.RequestStop(ctx, "cam1")
	require.NoError(t, err)
	assert.NoError(t, res.RemoteErr)
	assert.Equal(t, "Stream stopped successfully", res.Message)
	assert.Equal(t, model.SessionStopped, res.Session.State)
	_, ok := h.mock.Stream("cam1")
	assert.False(t, ok)
}

func TestRequestStop_UnknownEverywhere(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.RequestStop(context.Background(), "ghost")
	require.ErrorIs(t, err, backend.ErrServer)
}

func TestHealthPollingNeverTouchesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.RequestStart(ctx, "rtsp://camera.local/stream1", "cam1")
	require.NoError(t, err)
	before := h.waitState(t, "cam1", model.SessionPlaying)

	h.mock.SetHealthy(false)
	for i := 0; i < 3; i++ {
		h.poller.PollOnce(ctx)
	}
	assert.False(t, h.signal.Available())

	h.mock.SetHealthy(true)
	h.poller.PollOnce(ctx)
	assert.True(t, h.signal.Available())

	after, err := h.engine.Get("cam1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionPlaying, after.State)
	assert.Equal(t, before.Attempts, after.Attempts)
	assert.Nil(t, after.LastError)
}

func TestRequestStart_UnavailableBackendIsAdvisory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.mock.SetHealthy(false)
	h.poller.PollOnce(ctx)
	require.False(t, h.signal.Available())

	_, err := h.coord.RequestStart(ctx, "rtsp://camera.local/stream1", "cam1")
	require.NoError(t, err, "health is advisory and never blocks a start")
}
