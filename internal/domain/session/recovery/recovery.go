// Package recovery classifies playback failures and picks the recovery action.
package recovery

import (
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/domain/session/ports"
)

// Action is what the session does in response to a failure.
type Action string

const (
	ActionLog          Action = "log"
	ActionRecoverMedia Action = "recover_media"
	ActionFail         Action = "fail"
)

// MaxMediaRecoveries is the number of in-place decoder recoveries allowed per
// attachment before a media failure escalates.
const MaxMediaRecoveries = 1

const (
	MsgNetwork         = "Network error occurred. Please check your connection and stream URL."
	MsgMedia           = "Media error occurred. The stream might be unavailable or corrupted."
	MsgOther           = "An error occurred while loading the stream."
	MsgAutoplayBlocked = "Auto-play was prevented. Please click play to start the stream."
)

// Decision is the classifier output.
type Decision struct {
	Class   model.ErrorClass
	Action  Action
	Message string
}

// Classify maps a playback error to a recovery decision. mediaRecoveries is
// the number of in-place media recoveries already performed on the current
// attachment.
func Classify(err *ports.PlaybackError, mediaRecoveries int) Decision {
	if err == nil {
		return Decision{Class: model.ClassTransient, Action: ActionLog}
	}
	msg := Message(err.Category)
	if !err.Fatal {
		return Decision{Class: model.ClassTransient, Action: ActionLog, Message: msg}
	}
	switch err.Category {
	case ports.CategoryNetwork:
		return Decision{Class: model.ClassRecoverableSevere, Action: ActionFail, Message: msg}
	case ports.CategoryMedia:
		if mediaRecoveries < MaxMediaRecoveries {
			return Decision{Class: model.ClassRecoverableInPlace, Action: ActionRecoverMedia, Message: msg}
		}
		return Decision{Class: model.ClassRecoverableSevere, Action: ActionFail, Message: msg}
	default:
		return Decision{Class: model.ClassFatal, Action: ActionFail, Message: msg}
	}
}

// Message returns the user-facing text for a failure category.
func Message(c ports.ErrorCategory) string {
	switch c {
	case ports.CategoryNetwork:
		return MsgNetwork
	case ports.CategoryMedia:
		return MsgMedia
	default:
		return MsgOther
	}
}
