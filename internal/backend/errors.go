package backend

import (
	"errors"
	"fmt"
)

// Kind separates the three mutually exclusive transport failure modes.
type Kind int

const (
	// KindTimeout: the request did not complete within its deadline.
	KindTimeout Kind = iota + 1
	// KindNoResponse: the request was sent but nothing came back.
	KindNoResponse
	// KindServer: the backend answered with a non-2xx status or an unreadable body.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNoResponse:
		return "no_response"
	case KindServer:
		return "server_error"
	default:
		return "unknown"
	}
}

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrTimeout    = errors.New("backend: request timed out")
	ErrNoResponse = errors.New("backend: no response")
	ErrServer     = errors.New("backend: server error")
)

// User-facing messages for the transport kinds that carry no server text.
const (
	MsgTimeout    = "Request timeout. Please try again."
	MsgNoResponse = "No response from server. Please check if the server is running."
)

// Error is a backend call failure. Error() returns Message unchanged so the
// server's own wording reaches the operator verbatim.
type Error struct {
	Kind      Kind
	Operation string
	Status    int
	Message   string
	Err       error
}

func (e *Error) Error() string {
	return e.Message
}

// Detail is the log-oriented description including operation and status.
func (e *Error) Detail() string {
	msg := fmt.Sprintf("backend: %s: %s", e.Operation, e.Kind)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindTimeout:
		return ErrTimeout
	case KindNoResponse:
		return ErrNoResponse
	default:
		return ErrServer
	}
}

// Unwrap exposes both the sentinel for the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

// UserMessage returns the text to show for err: the backend's message for
// backend failures and err.Error() otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
