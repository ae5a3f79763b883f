package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// sessionRegistry counts running session actors per id. Once closing it
// refuses new actors so shutdown can join a fixed set.
type sessionRegistry struct {
	mu      sync.Mutex
	closing bool
	running map[string]int
	wg      sync.WaitGroup
}

// Go runs fn as the actor of id. It reports false after CloseAndWait.
func (r *sessionRegistry) Go(id string, fn func()) bool {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return false
	}
	if r.running == nil {
		r.running = map[string]int{}
	}
	r.running[id]++
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.exit(id)
		fn()
	}()
	return true
}

func (r *sessionRegistry) exit(id string) {
	r.mu.Lock()
	if r.running[id]--; r.running[id] <= 0 {
		delete(r.running, id)
	}
	r.mu.Unlock()
	r.wg.Done()
}

// Running reports whether an actor for id has not returned yet.
func (r *sessionRegistry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[id] > 0
}

// Active lists ids with a running actor, sorted.
func (r *sessionRegistry) Active() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// CloseAndWait stops accepting actors and waits for the running ones.
func (r *sessionRegistry) CloseAndWait(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d session actors still running: %w", len(r.Active()), ctx.Err())
	}
}

// keyedLocks serialises operations per session id. Entries live only while
// someone holds or waits for them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until id is free and returns the matching unlock.
func (k *keyedLocks) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*refLock{}
	}
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
