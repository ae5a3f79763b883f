// Package ports defines the boundary between the session engine and the
// segment-stream client that drives a presentation surface.
package ports

import (
	"context"
	"errors"
	"fmt"
)

// ErrAutoplayBlocked reports a presentation surface that refused to start
// playback without a user gesture.
var ErrAutoplayBlocked = errors.New("autoplay blocked")

// ErrorCategory groups playback failures by origin.
type ErrorCategory string

const (
	CategoryNetwork ErrorCategory = "network"
	CategoryMedia   ErrorCategory = "media"
	CategoryOther   ErrorCategory = "other"
)

// PlaybackError is a failure reported by an attachment.
type PlaybackError struct {
	Category ErrorCategory
	Fatal    bool
	Details  string
	Err      error
}

func (e *PlaybackError) Error() string {
	sev := "non-fatal"
	if e.Fatal {
		sev = "fatal"
	}
	msg := fmt.Sprintf("%s %s error", sev, e.Category)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// EventKind identifies the attachment event variants.
type EventKind int

const (
	EventReady EventKind = iota + 1
	EventError
	EventProgress
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Event is emitted by an attachment in the order things happen.
type Event struct {
	Kind EventKind

	// Ready
	AutoplayBlocked bool

	// Error
	Err *PlaybackError

	// Progress, in seconds
	Time     float64
	Duration float64
}

// Attachment is a live binding between a session and a manifest.
type Attachment interface {
	// Events is closed once the attachment has fully stopped.
	Events() <-chan Event
	// Play asks the surface to start playback on behalf of a user gesture.
	Play() error
	Pause()
	// RecoverMedia resets the decoder after a fatal media error and resumes
	// feeding with the next segment.
	RecoverMedia()
	// Detach stops the attachment and waits for it. Safe to call repeatedly.
	Detach()
}

// Attacher creates attachments.
type Attacher interface {
	Attach(ctx context.Context, sessionID, manifest string) (Attachment, error)
}
