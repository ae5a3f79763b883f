// Package model holds the stream session record and its enumerations.
package model

// SessionState is the playback state of a single stream session.
type SessionState string

const (
	SessionIdle     SessionState = "IDLE"
	SessionStarting SessionState = "STARTING"
	SessionReady    SessionState = "READY"
	SessionPlaying  SessionState = "PLAYING"
	SessionPaused   SessionState = "PAUSED"
	SessionError    SessionState = "ERROR"
	SessionStopped  SessionState = "STOPPED"
)

// AllStates lists every session state in declaration order.
func AllStates() []SessionState {
	return []SessionState{
		SessionIdle,
		SessionStarting,
		SessionReady,
		SessionPlaying,
		SessionPaused,
		SessionError,
		SessionStopped,
	}
}

// IsTerminal reports whether no further transition may leave the state.
func (s SessionState) IsTerminal() bool {
	return s == SessionStopped
}

// Attached reports whether a session in this state owns a live attachment.
func (s SessionState) Attached() bool {
	switch s {
	case SessionStarting, SessionReady, SessionPlaying, SessionPaused:
		return true
	default:
		return false
	}
}

// ErrorClass is the recovery classification of a playback failure.
type ErrorClass string

const (
	ClassTransient          ErrorClass = "transient"
	ClassRecoverableSevere  ErrorClass = "recoverable_severe"
	ClassRecoverableInPlace ErrorClass = "recoverable_in_place"
	ClassFatal              ErrorClass = "fatal"
)
