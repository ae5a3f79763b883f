package lifecycle

import (
	"errors"
	"fmt"

	"github.com/livesitter/livesitter/internal/domain/session/model"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSessionNotFound   = errors.New("session not found")
)

// TransitionError describes a rejected transition.
type TransitionError struct {
	From   model.SessionState
	Event  EventKind
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Event, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
