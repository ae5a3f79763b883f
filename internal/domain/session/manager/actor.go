package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/domain/session/lifecycle"
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/domain/session/ports"
	"github.com/livesitter/livesitter/internal/domain/session/recovery"
	"github.com/livesitter/livesitter/internal/log"
)

type commandKind int

const (
	cmdStart commandKind = iota + 1
	cmdStop
	cmdRetry
	cmdReset
	cmdPlay
	cmdPause
)

func (k commandKind) event() lifecycle.EventKind {
	switch k {
	case cmdStart:
		return lifecycle.EvStartRequested
	case cmdStop:
		return lifecycle.EvStop
	case cmdRetry:
		return lifecycle.EvRetry
	case cmdReset:
		return lifecycle.EvReset
	case cmdPlay:
		return lifecycle.EvPlay
	case cmdPause:
		return lifecycle.EvPause
	default:
		return lifecycle.EvUnknown
	}
}

type command struct {
	ctx   context.Context
	kind  commandKind
	reply chan result
}

type result struct {
	rec model.SessionRecord
	err error
}

// session is a single-writer actor. Only loop mutates rec, att and events.
type session struct {
	engine *Engine
	logger zerolog.Logger
	cmds   chan command
	done   chan struct{}

	rec    *model.SessionRecord
	att    ports.Attachment
	events <-chan ports.Event

	snapMu sync.RWMutex
	snap   model.SessionRecord
}

func newSession(e *Engine, rec *model.SessionRecord) *session {
	s := &session{
		engine: e,
		logger: e.logger.With().Str(log.FieldSessionID, rec.SessionID).Logger(),
		cmds:   make(chan command),
		done:   make(chan struct{}),
		rec:    rec,
	}
	s.publish()
	return s
}

func (s *session) snapshot() model.SessionRecord {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

func (s *session) publish() {
	snap := s.rec.Clone()
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
}

// send hands a command to the actor and waits for its reply. Commands to a
// finished actor are answered from the final snapshot.
func (s *session) send(ctx context.Context, kind commandKind) (model.SessionRecord, error) {
	cmd := command{ctx: ctx, kind: kind, reply: make(chan result, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		snap := s.snapshot()
		if kind == cmdStop {
			return snap, nil
		}
		return snap, &lifecycle.TransitionError{From: snap.State, Event: kind.event(), Reason: lifecycle.ForbiddenTerminalAbsorbing}
	case <-ctx.Done():
		return s.snapshot(), ctx.Err()
	}
	r := <-cmd.reply
	return r.rec, r.err
}

func (s *session) loop() {
	activeSessions.Inc()
	defer activeSessions.Dec()
	defer close(s.done)

	for {
		select {
		case cmd := <-s.cmds:
			err := s.handle(cmd)
			s.publish()
			cmd.reply <- result{rec: s.rec.Clone(), err: err}
			if s.rec.State.IsTerminal() {
				return
			}
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				continue
			}
			s.onEvent(ev)
			s.publish()
		}
	}
}

func (s *session) handle(cmd command) error {
	switch cmd.kind {
	case cmdStop:
		if s.rec.State.IsTerminal() {
			return nil
		}
		_, err := s.transition(cmd.ctx, lifecycle.EvStop)
		return err
	case cmdPlay:
		return s.play()
	case cmdPause:
		if err := s.check(lifecycle.EvPause); err != nil {
			return err
		}
		if s.att != nil {
			s.att.Pause()
		}
		_, err := s.transition(cmd.ctx, lifecycle.EvPause)
		return err
	default:
		_, err := s.transition(cmd.ctx, cmd.kind.event())
		return err
	}
}

func (s *session) check(ev lifecycle.EventKind) error {
	d, ok := lifecycle.DecisionFor(s.rec.State, ev)
	if ok && d.Allowed {
		return nil
	}
	reason := d.Reason
	if !ok {
		reason = lifecycle.ForbiddenOutOfOrder
	}
	return &lifecycle.TransitionError{From: s.rec.State, Event: ev, Reason: reason}
}

func (s *session) play() error {
	if err := s.check(lifecycle.EvPlay); err != nil {
		return err
	}
	if s.att != nil {
		if err := s.att.Play(); err != nil {
			if errors.Is(err, ports.ErrAutoplayBlocked) {
				s.rec.Notice = recovery.MsgAutoplayBlocked
				return ports.ErrAutoplayBlocked
			}
			return fmt.Errorf("play: %w", err)
		}
	}
	_, err := s.transition(context.Background(), lifecycle.EvPlay)
	return err
}

// transition applies ev and performs the detach/attach side effects of the
// edge. Detach always happens before a new attach.
func (s *session) transition(ctx context.Context, ev lifecycle.EventKind) (lifecycle.Transition, error) {
	from := s.rec.State
	tr, err := lifecycle.Dispatch(s.rec, ev, s.engine.now())
	if err != nil {
		s.logger.Debug().
			Str(log.FieldEvent, "session.transition_rejected").
			Str(log.FieldOldState, string(from)).
			Str(log.FieldOperation, ev.String()).
			Err(err).
			Msg("transition rejected")
		return tr, err
	}
	recordTransition(tr.From, tr.To)
	s.logger.Info().
		Str(log.FieldEvent, "session.transition").
		Str(log.FieldOldState, string(tr.From)).
		Str(log.FieldNewState, string(tr.To)).
		Str(log.FieldOperation, ev.String()).
		Msg("session transition")

	if tr.Detach {
		s.detach()
	}
	if tr.Attach {
		if err := s.attach(ctx); err != nil {
			return tr, err
		}
	}
	return tr, nil
}

func (s *session) detach() {
	if s.att == nil {
		return
	}
	s.att.Detach()
	s.att = nil
	s.events = nil
}

func (s *session) attach(ctx context.Context) error {
	att, err := s.engine.attacher.Attach(ctx, s.rec.SessionID, s.rec.Manifest)
	recordAttach(err)
	if err != nil {
		s.fail(recovery.Decision{Class: model.ClassFatal, Action: recovery.ActionFail, Message: recovery.MsgOther}, string(ports.CategoryOther), err)
		return fmt.Errorf("attach %s: %w", s.rec.SessionID, err)
	}
	s.att = att
	s.events = att.Events()
	return nil
}

func (s *session) onEvent(ev ports.Event) {
	switch ev.Kind {
	case ports.EventReady:
		if s.rec.State != model.SessionStarting {
			return
		}
		if _, err := s.transition(context.Background(), lifecycle.EvReady); err != nil {
			return
		}
		if ev.AutoplayBlocked {
			s.rec.Notice = recovery.MsgAutoplayBlocked
			s.logger.Info().Str(log.FieldEvent, "session.autoplay_blocked").Msg(recovery.MsgAutoplayBlocked)
			return
		}
		_, _ = s.transition(context.Background(), lifecycle.EvPlay)

	case ports.EventProgress:
		if s.rec.State.IsTerminal() {
			return
		}
		s.rec.Position = ev.Time
		s.rec.Duration = ev.Duration

	case ports.EventError:
		if ev.Err == nil {
			return
		}
		s.onError(ev.Err)
	}
}

func (s *session) onError(perr *ports.PlaybackError) {
	d := recovery.Classify(perr, s.rec.MediaRecoveries)
	recordFailure(string(perr.Category), d.Class)

	logEv := s.logger.Warn()
	if d.Action == recovery.ActionFail {
		logEv = s.logger.Error()
	}
	logEv.
		Str(log.FieldEvent, "session.playback_error").
		Str(log.FieldCategory, string(perr.Category)).
		Str(log.FieldClass, string(d.Class)).
		Bool("fatal", perr.Fatal).
		Str("details", perr.Details).
		Err(perr.Err).
		Msg(d.Message)

	switch d.Action {
	case recovery.ActionLog:
	case recovery.ActionRecoverMedia:
		s.rec.MediaRecoveries++
		mediaRecoveries.Inc()
		if s.att != nil {
			s.att.RecoverMedia()
		}
	case recovery.ActionFail:
		s.fail(d, string(perr.Category), perr)
	}
}

// fail moves the session to ERROR and records the failure.
func (s *session) fail(d recovery.Decision, category string, cause error) {
	if _, err := s.transition(context.Background(), lifecycle.EvFailed); err != nil {
		return
	}
	s.rec.LastError = &model.ErrorInfo{Class: d.Class, Category: category, Message: d.Message}
	s.logger.Debug().Err(cause).Str(log.FieldEvent, "session.failed").Msg("session entered error state")
}
