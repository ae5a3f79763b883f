package overlay

import (
	"fmt"
	"math"
	"time"
)

// Clock is the playback position shown alongside a frame.
type Clock struct {
	SessionID string  `json:"session_id"`
	State     string  `json:"state"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	// Display is Position formatted as m:ss.
	Display string `json:"display"`
}

// NewClock fills Display from position.
func NewClock(sessionID, state string, position, duration float64) *Clock {
	return &Clock{
		SessionID: sessionID,
		State:     state,
		Position:  position,
		Duration:  duration,
		Display:   FormatClock(position),
	}
}

// FormatClock renders seconds as m:ss. Negative and non-finite values render
// as 0:00.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Frame is the ephemeral output of one compositor tick.
type Frame struct {
	Tick     uint64       `json:"tick"`
	At       time.Time    `json:"at"`
	Viewport Viewport     `json:"viewport"`
	Items    []RenderItem `json:"items"`
	Clock    *Clock       `json:"clock,omitempty"`
}
