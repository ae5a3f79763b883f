package lifecycle

import (
	"time"

	"github.com/livesitter/livesitter/internal/domain/session/model"
)

// Dispatch resolves the transition for ev and applies it to rec.
func Dispatch(rec *model.SessionRecord, ev EventKind, now time.Time) (Transition, error) {
	decision, ok := DecisionFor(rec.State, ev)
	if !ok {
		return Transition{}, &TransitionError{From: rec.State, Event: ev, Reason: ForbiddenOutOfOrder}
	}
	if !decision.Allowed {
		return Transition{}, &TransitionError{From: rec.State, Event: ev, Reason: decision.Reason}
	}
	tr, ok := TransitionFor(rec.State, ev)
	if !ok {
		return Transition{}, &TransitionError{From: rec.State, Event: ev, Reason: ForbiddenOutOfOrder}
	}
	ApplyTransition(rec, tr, now)
	return tr, nil
}

// ApplyTransition mutates rec according to tr.
func ApplyTransition(rec *model.SessionRecord, tr Transition, now time.Time) {
	rec.State = tr.To
	rec.UpdatedAt = now
	if tr.Attach {
		rec.Attempts++
		rec.MediaRecoveries = 0
		rec.Notice = ""
	}
	switch tr.Event {
	case EvRetry, EvReset:
		rec.LastError = nil
	case EvPlay:
		rec.Notice = ""
	}
}
