package lifecycle

import "github.com/livesitter/livesitter/internal/domain/session/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From  model.SessionState
	To    model.SessionState
	Event EventKind
	// Detach marks edges that release the current attachment.
	Detach bool
	// Attach marks edges that create a new attachment.
	Attach bool
}

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

var transitionsTable = []Transition{
	// Start path
	{From: model.SessionIdle, To: model.SessionStarting, Event: EvStartRequested, Attach: true},
	{From: model.SessionStarting, To: model.SessionReady, Event: EvReady},

	// Playback control
	{From: model.SessionReady, To: model.SessionPlaying, Event: EvPlay},
	{From: model.SessionPaused, To: model.SessionPlaying, Event: EvPlay},
	{From: model.SessionPlaying, To: model.SessionPaused, Event: EvPause},

	// Failure
	{From: model.SessionStarting, To: model.SessionError, Event: EvFailed, Detach: true},
	{From: model.SessionReady, To: model.SessionError, Event: EvFailed, Detach: true},
	{From: model.SessionPlaying, To: model.SessionError, Event: EvFailed, Detach: true},
	{From: model.SessionPaused, To: model.SessionError, Event: EvFailed, Detach: true},

	// Recovery
	{From: model.SessionError, To: model.SessionStarting, Event: EvRetry, Attach: true},
	{From: model.SessionStarting, To: model.SessionStarting, Event: EvReset, Detach: true, Attach: true},
	{From: model.SessionReady, To: model.SessionStarting, Event: EvReset, Detach: true, Attach: true},
	{From: model.SessionPlaying, To: model.SessionStarting, Event: EvReset, Detach: true, Attach: true},
	{From: model.SessionPaused, To: model.SessionStarting, Event: EvReset, Detach: true, Attach: true},
	{From: model.SessionError, To: model.SessionStarting, Event: EvReset, Attach: true},

	// Stop
	{From: model.SessionIdle, To: model.SessionStopped, Event: EvStop},
	{From: model.SessionStarting, To: model.SessionStopped, Event: EvStop, Detach: true},
	{From: model.SessionReady, To: model.SessionStopped, Event: EvStop, Detach: true},
	{From: model.SessionPlaying, To: model.SessionStopped, Event: EvStop, Detach: true},
	{From: model.SessionPaused, To: model.SessionStopped, Event: EvStop, Detach: true},
	{From: model.SessionError, To: model.SessionStopped, Event: EvStop},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.SessionState, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
