package health

import (
	"sync"
	"time"
)

// Reader is the read-only view of the backend availability signal.
type Reader interface {
	Available() bool
	Polled() bool
	LastError() string
	CheckedAt() time.Time
}

// Signal is the process-wide backend availability flag. It is unavailable
// until the first poll completes and is written only by a Poller.
type Signal struct {
	mu        sync.RWMutex
	available bool
	polled    bool
	lastErr   string
	checkedAt time.Time
}

// NewSignal returns an unpolled, unavailable signal.
func NewSignal() *Signal {
	return &Signal{}
}

func (s *Signal) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *Signal) Polled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.polled
}

func (s *Signal) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Signal) CheckedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkedAt
}

// set records a poll outcome and reports whether availability changed.
func (s *Signal) set(err error, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, prevPolled := s.available, s.polled
	s.available = err == nil
	s.polled = true
	s.checkedAt = at
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	return !prevPolled || prev != s.available
}
