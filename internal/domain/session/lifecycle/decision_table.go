package lifecycle

import "github.com/livesitter/livesitter/internal/domain/session/model"

const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenOutOfOrder        = "out_of_order"
	ForbiddenAlreadyInState    = "already_in_state"
	ForbiddenAlreadyStarted    = "already_started"
	ForbiddenRequiresStart     = "requires_start"
	ForbiddenRequiresReady     = "requires_ready"
	ForbiddenRequiresPlaying   = "requires_playing"
	ForbiddenRequiresError     = "requires_error"
)

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

// decisionTable defines an explicit decision for every State×Event combination.
var decisionTable = map[model.SessionState]map[EventKind]Decision{
	model.SessionIdle: {
		EvStartRequested: allowed(),
		EvReady:          forbid(ForbiddenOutOfOrder),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenRequiresPlaying),
		EvFailed:         forbid(ForbiddenRequiresStart),
		EvRetry:          forbid(ForbiddenRequiresError),
		EvReset:          forbid(ForbiddenRequiresStart),
		EvStop:           allowed(),
	},
	model.SessionStarting: {
		EvStartRequested: forbid(ForbiddenAlreadyInState),
		EvReady:          allowed(),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenRequiresPlaying),
		EvFailed:         allowed(),
		EvRetry:          forbid(ForbiddenRequiresError),
		EvReset:          allowed(),
		EvStop:           allowed(),
	},
	model.SessionReady: {
		EvStartRequested: forbid(ForbiddenAlreadyStarted),
		EvReady:          forbid(ForbiddenAlreadyInState),
		EvPlay:           allowed(),
		EvPause:          forbid(ForbiddenRequiresPlaying),
		EvFailed:         allowed(),
		EvRetry:          forbid(ForbiddenRequiresError),
		EvReset:          allowed(),
		EvStop:           allowed(),
	},
	model.SessionPlaying: {
		EvStartRequested: forbid(ForbiddenAlreadyStarted),
		EvReady:          forbid(ForbiddenOutOfOrder),
		EvPlay:           forbid(ForbiddenAlreadyInState),
		EvPause:          allowed(),
		EvFailed:         allowed(),
		EvRetry:          forbid(ForbiddenRequiresError),
		EvReset:          allowed(),
		EvStop:           allowed(),
	},
	model.SessionPaused: {
		EvStartRequested: forbid(ForbiddenAlreadyStarted),
		EvReady:          forbid(ForbiddenOutOfOrder),
		EvPlay:           allowed(),
		EvPause:          forbid(ForbiddenAlreadyInState),
		EvFailed:         allowed(),
		EvRetry:          forbid(ForbiddenRequiresError),
		EvReset:          allowed(),
		EvStop:           allowed(),
	},
	model.SessionError: {
		EvStartRequested: forbid(ForbiddenAlreadyStarted),
		EvReady:          forbid(ForbiddenOutOfOrder),
		EvPlay:           forbid(ForbiddenRequiresReady),
		EvPause:          forbid(ForbiddenRequiresPlaying),
		EvFailed:         forbid(ForbiddenAlreadyInState),
		EvRetry:          allowed(),
		EvReset:          allowed(),
		EvStop:           allowed(),
	},
	model.SessionStopped: {
		EvStartRequested: forbid(ForbiddenTerminalAbsorbing),
		EvReady:          forbid(ForbiddenTerminalAbsorbing),
		EvPlay:           forbid(ForbiddenTerminalAbsorbing),
		EvPause:          forbid(ForbiddenTerminalAbsorbing),
		EvFailed:         forbid(ForbiddenTerminalAbsorbing),
		EvRetry:          forbid(ForbiddenTerminalAbsorbing),
		EvReset:          forbid(ForbiddenTerminalAbsorbing),
		EvStop:           forbid(ForbiddenTerminalAbsorbing),
	},
}

// DecisionFor returns the decision for a given state+event.
func DecisionFor(from model.SessionState, ev EventKind) (Decision, bool) {
	byEvent, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := byEvent[ev]
	return d, ok
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.SessionState, ev EventKind) string {
	decision, ok := DecisionFor(from, ev)
	if !ok || decision.Allowed {
		return ""
	}
	return decision.Reason
}
