package model

import "time"

// ErrorInfo is the last error recorded on a session.
type ErrorInfo struct {
	Class    ErrorClass `json:"class"`
	Category string     `json:"category,omitempty"`
	Message  string     `json:"message"`
}

// SessionRecord is the observable state of one playback attempt.
type SessionRecord struct {
	SessionID       string       `json:"session_id"`
	Source          string       `json:"source,omitempty"`
	Manifest        string       `json:"manifest"`
	State           SessionState `json:"state"`
	StartedAt       time.Time    `json:"started_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	LastError       *ErrorInfo   `json:"last_error,omitempty"`
	Notice          string       `json:"notice,omitempty"`
	Position        float64      `json:"position"`
	Duration        float64      `json:"duration"`
	Attempts        int          `json:"attempts"`
	MediaRecoveries int          `json:"media_recoveries"`
}

// NewRecord returns an IDLE record for a fresh session.
func NewRecord(sessionID, source, manifest string, now time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID: sessionID,
		Source:    source,
		Manifest:  manifest,
		State:     SessionIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand to readers.
func (r *SessionRecord) Clone() SessionRecord {
	out := *r
	if r.LastError != nil {
		e := *r.LastError
		out.LastError = &e
	}
	return out
}
