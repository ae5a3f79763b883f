// Package manager runs one actor per stream session and drives it through the
// lifecycle state machine.
package manager

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/domain/session/lifecycle"
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/domain/session/ports"
	"github.com/livesitter/livesitter/internal/log"
)

var (
	ErrSessionNotFound = lifecycle.ErrSessionNotFound
	ErrSessionClosed   = errors.New("session engine closed")
)

// Engine owns every stream session of the process.
type Engine struct {
	attacher  ports.Attacher
	logger    zerolog.Logger
	now       func() time.Time
	retention time.Duration

	locks    keyedLocks
	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
	registry sessionRegistry
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// DefaultRetention is how long a stopped session stays visible to Get and List.
const DefaultRetention = 10 * time.Minute

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) { e.retention = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine attaching sessions through attacher.
func NewEngine(attacher ports.Attacher, opts ...Option) *Engine {
	e := &Engine{
		attacher: attacher,
		logger:   log.WithComponent("session"),
		now:       time.Now,
		retention: DefaultRetention,
		sessions:  map[string]*session{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lockFor(id string) func() {
	return e.locks.lock(id)
}

// prune drops stopped sessions older than the retention window. Callers
// hold e.mu.
func (e *Engine) prune() {
	cutoff := e.now().Add(-e.retention)
	for id, s := range e.sessions {
		snap := s.snapshot()
		if !snap.State.IsTerminal() || snap.UpdatedAt.After(cutoff) || e.registry.Running(id) {
			continue
		}
		delete(e.sessions, id)
		e.logger.Debug().
			Str(log.FieldEvent, "session.pruned").
			Str(log.FieldSessionID, id).
			Msg("stopped session forgotten")
	}
}

func (e *Engine) lookup(id string) (*session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	return s, ok
}

// Start creates a fresh session for id and attaches it to manifest. A live
// session with the same id is stopped first; its teardown completes before
// the new attachment is made.
func (e *Engine) Start(ctx context.Context, id, source, manifest string) (model.SessionRecord, error) {
	unlock := e.lockFor(id)
	defer unlock()

	if prev, ok := e.lookup(id); ok {
		if _, err := prev.send(context.WithoutCancel(ctx), cmdStop); err != nil {
			return model.SessionRecord{}, err
		}
		<-prev.done
		e.logger.Info().
			Str(log.FieldEvent, "session.superseded").
			Str(log.FieldSessionID, id).
			Msg("previous session stopped")
	}

	s := newSession(e, model.NewRecord(id, source, manifest, e.now()))
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return model.SessionRecord{}, ErrSessionClosed
	}
	if !e.registry.Go(id, s.loop) {
		e.mu.Unlock()
		return model.SessionRecord{}, ErrSessionClosed
	}
	e.prune()
	e.sessions[id] = s
	e.mu.Unlock()

	rec, err := s.send(ctx, cmdStart)
	if err != nil && rec.State == model.SessionIdle {
		// The start never reached the actor; do not leave an idle session behind.
		e.discard(context.WithoutCancel(ctx), id, s)
	}
	return rec, err
}

func (e *Engine) discard(ctx context.Context, id string, s *session) {
	if _, err := s.send(ctx, cmdStop); err != nil {
		e.logger.Warn().Err(err).Str(log.FieldSessionID, id).Msg("failed to stop unstarted session")
	}
	<-s.done
	e.mu.Lock()
	if e.sessions[id] == s {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
}

// Stop detaches and terminates the session. Stopping a stopped session is a
// no-op.
func (e *Engine) Stop(ctx context.Context, id string) (model.SessionRecord, error) {
	return e.control(ctx, id, cmdStop)
}

// Retry re-attaches a session in ERROR.
func (e *Engine) Retry(ctx context.Context, id string) (model.SessionRecord, error) {
	return e.control(ctx, id, cmdRetry)
}

// Reset detaches and re-attaches the session with the same manifest.
func (e *Engine) Reset(ctx context.Context, id string) (model.SessionRecord, error) {
	return e.control(ctx, id, cmdReset)
}

// Play starts playback on user request. It returns ports.ErrAutoplayBlocked
// when the surface still refuses.
func (e *Engine) Play(ctx context.Context, id string) (model.SessionRecord, error) {
	return e.control(ctx, id, cmdPlay)
}

// Pause pauses a playing session.
func (e *Engine) Pause(ctx context.Context, id string) (model.SessionRecord, error) {
	return e.control(ctx, id, cmdPause)
}

func (e *Engine) control(ctx context.Context, id string, kind commandKind) (model.SessionRecord, error) {
	unlock := e.lockFor(id)
	defer unlock()

	s, ok := e.lookup(id)
	if !ok {
		return model.SessionRecord{}, ErrSessionNotFound
	}
	return s.send(ctx, kind)
}

// Get returns a snapshot of the session.
func (e *Engine) Get(id string) (model.SessionRecord, error) {
	s, ok := e.lookup(id)
	if !ok {
		return model.SessionRecord{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// List returns snapshots of all sessions ordered by id. Stopped sessions past
// the retention window are dropped.
func (e *Engine) List() []model.SessionRecord {
	e.mu.Lock()
	e.prune()
	out := make([]model.SessionRecord, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s.snapshot())
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Close stops every session and waits for their actors.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	for _, id := range e.registry.Active() {
		if _, err := e.Stop(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.registry.CloseAndWait(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
