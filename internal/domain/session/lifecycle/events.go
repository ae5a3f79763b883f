// Package lifecycle is the single source of truth for stream session state
// transitions.
package lifecycle

// EventKind is a domain event in the session lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvStartRequested
	EvReady
	EvPlay
	EvPause
	EvFailed
	EvRetry
	EvReset
	EvStop
)

// AllEvents lists every concrete event kind.
func AllEvents() []EventKind {
	return []EventKind{EvStartRequested, EvReady, EvPlay, EvPause, EvFailed, EvRetry, EvReset, EvStop}
}

func (k EventKind) String() string {
	switch k {
	case EvStartRequested:
		return "start"
	case EvReady:
		return "ready"
	case EvPlay:
		return "play"
	case EvPause:
		return "pause"
	case EvFailed:
		return "fail"
	case EvRetry:
		return "retry"
	case EvReset:
		return "reset"
	case EvStop:
		return "stop"
	default:
		return "unknown"
	}
}
