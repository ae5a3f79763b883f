// Package coordinator sequences stream start and stop between the backend
// converter and the local session engine.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/domain/session/manager"
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/health"
	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/telemetry"
)

// Backend is the converter side of the lifecycle.
type Backend interface {
	StartStream(ctx context.Context, req backend.StartStreamRequest) (backend.StartStreamResponse, error)
	StopStream(ctx context.Context, streamID string) (string, error)
	StreamStatus(ctx context.Context) (backend.StreamStatus, error)
}

// Sessions is the local playback side of the lifecycle.
type Sessions interface {
	Start(ctx context.Context, id, source, manifest string) (model.SessionRecord, error)
	Stop(ctx context.Context, id string) (model.SessionRecord, error)
}

// StopResult is the outcome of RequestStop. RemoteErr is a warning: the local
// session is stopped either way.
type StopResult struct {
	Session   model.SessionRecord
	Found     bool
	Message   string
	RemoteErr error
}

// Coordinator drives the start/stop protocol.
type Coordinator struct {
	backend      Backend
	sessions     Sessions
	manifestBase string
	health       health.Reader
	tracer       trace.Tracer
	logger       zerolog.Logger
	now          func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHealth makes RequestStart log a warning while the backend is down.
func WithHealth(r health.Reader) Option {
	return func(c *Coordinator) { c.health = r }
}

// WithClock replaces time.Now for stream id generation.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator. manifestBase is the prefix of
// {base}/streams/{id}/playlist.m3u8.
func New(b Backend, sessions Sessions, manifestBase string, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:      b,
		sessions:     sessions,
		manifestBase: manifestBase,
		tracer:       telemetry.Tracer("livesitter/coordinator"),
		logger:       log.WithComponent("coordinator"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestStart validates source, asks the backend to start converting it and
// then starts local playback. A backend failure is returned without creating
// a session.
func (c *Coordinator) RequestStart(ctx context.Context, source, streamID string) (model.SessionRecord, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.request_start")
	defer span.End()

	if err := ValidateSourceLocator(source); err != nil {
		span.SetAttributes(telemetry.ErrorAttributes("validation")...)
		span.SetStatus(codes.Error, err.Error())
		return model.SessionRecord{}, err
	}
	if streamID == "" {
		streamID = GenerateStreamID(c.now())
	}
	if err := ValidateStreamID(streamID); err != nil {
		span.SetAttributes(telemetry.ErrorAttributes("validation")...)
		span.SetStatus(codes.Error, err.Error())
		return model.SessionRecord{}, err
	}

	manifest := ManifestLocator(c.manifestBase, streamID)
	span.SetAttributes(telemetry.SessionAttributes(streamID, source, manifest)...)
	logger := log.WithContext(log.ContextWithSessionID(ctx, streamID), c.logger)

	if c.health != nil && c.health.Polled() && !c.health.Available() {
		logger.Warn().Str(log.FieldEvent, "coordinator.backend_unavailable").Msg("backend reported unavailable, trying anyway")
	}

	resp, err := c.backend.StartStream(ctx, backend.StartStreamRequest{RTSPURL: source, StreamID: streamID})
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttributes("backend")...)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Str(log.FieldEvent, "coordinator.start_failed").Msg("backend start failed")
		return model.SessionRecord{}, err
	}
	if resp.PlaylistURL != "" {
		logger.Debug().Str("playlist_url", resp.PlaylistURL).Msg("backend playlist url ignored in favour of derived locator")
	}

	rec, err := c.sessions.Start(ctx, streamID, source, manifest)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return rec, err
	}
	span.SetAttributes(attribute.String(telemetry.StateKey, string(rec.State)))
	logger.Info().
		Str(log.FieldEvent, "coordinator.started").
		Str(log.FieldSource, source).
		Str(log.FieldManifest, manifest).
		Msg("stream started")
	return rec, nil
}

// RequestStop asks the backend to stop and then stops the local session
// regardless of the remote outcome.
func (c *Coordinator) RequestStop(ctx context.Context, streamID string) (StopResult, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.request_stop")
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(streamID, "", "")...)
	logger := log.WithContext(log.ContextWithSessionID(ctx, streamID), c.logger)

	var res StopResult
	res.Message, res.RemoteErr = c.backend.StopStream(ctx, streamID)
	if res.RemoteErr != nil {
		span.SetAttributes(telemetry.ErrorAttributes("backend")...)
		logger.Warn().Err(res.RemoteErr).Str(log.FieldEvent, "coordinator.remote_stop_failed").Msg("backend stop failed, stopping locally")
	}

	rec, err := c.sessions.Stop(context.WithoutCancel(ctx), streamID)
	switch {
	case errors.Is(err, manager.ErrSessionNotFound):
		if res.RemoteErr != nil {
			span.SetStatus(codes.Error, res.RemoteErr.Error())
			return res, res.RemoteErr
		}
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		return res, err
	default:
		res.Session = rec
		res.Found = true
	}
	logger.Info().Str(log.FieldEvent, "coordinator.stopped").Bool("local", res.Found).Msg("stream stopped")
	return res, nil
}

// Status returns the backend's view of active conversions.
func (c *Coordinator) Status(ctx context.Context) (backend.StreamStatus, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.status")
	defer span.End()
	st, err := c.backend.StreamStatus(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return st, err
}
