package manager

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/livesitter/livesitter/internal/domain/session/ports"
)

// fakeAttacher records attachments and tracks how many are live per session.
type fakeAttacher struct {
	mu       sync.Mutex
	live     map[string]int
	maxLive  int
	attaches int
	all      []*fakeAttachment
	err      error
}

func newFakeAttacher() *fakeAttacher {
	return &fakeAttacher{live: map[string]int{}}
}

func (f *fakeAttacher) Attach(_ context.Context, sessionID, _ string) (ports.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.attaches++
	f.live[sessionID]++
	if f.live[sessionID] > f.maxLive {
		f.maxLive = f.live[sessionID]
	}
	a := &fakeAttachment{parent: f, sessionID: sessionID, events: make(chan ports.Event, 16)}
	f.all = append(f.all, a)
	return a, nil
}

func (f *fakeAttacher) last() *fakeAttachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.all) == 0 {
		return nil
	}
	return f.all[len(f.all)-1]
}

func (f *fakeAttacher) liveCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[id]
}

func (f *fakeAttacher) stats() (attaches, maxLive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attaches, f.maxLive
}

func (f *fakeAttacher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeAttachment struct {
	parent    *fakeAttacher
	sessionID string
	events    chan ports.Event

	mu        sync.Mutex
	detached  bool
	playErr   error
	paused    atomic.Int32
	plays     atomic.Int32
	recovered atomic.Int32
}

func (a *fakeAttachment) Events() <-chan ports.Event { return a.events }

func (a *fakeAttachment) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playErr != nil {
		return a.playErr
	}
	a.plays.Add(1)
	return nil
}

func (a *fakeAttachment) setPlayErr(err error) {
	a.mu.Lock()
	a.playErr = err
	a.mu.Unlock()
}

func (a *fakeAttachment) Pause() { a.paused.Add(1) }

func (a *fakeAttachment) RecoverMedia() { a.recovered.Add(1) }

func (a *fakeAttachment) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached {
		return
	}
	a.detached = true
	close(a.events)

	a.parent.mu.Lock()
	a.parent.live[a.sessionID]--
	a.parent.mu.Unlock()
}

func (a *fakeAttachment) isDetached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detached
}

// emit delivers ev unless the attachment was detached.
func (a *fakeAttachment) emit(ev ports.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached {
		return false
	}
	a.events <- ev
	return true
}

func (a *fakeAttachment) ready(blocked bool) bool {
	return a.emit(ports.Event{Kind: ports.EventReady, AutoplayBlocked: blocked})
}

func (a *fakeAttachment) fail(category ports.ErrorCategory, fatal bool) bool {
	return a.emit(ports.Event{Kind: ports.EventError, Err: &ports.PlaybackError{Category: category, Fatal: fatal}})
}
