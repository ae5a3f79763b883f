package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/livesitter/livesitter/internal/backend"
)

type scriptedPinger struct {
	mu      sync.Mutex
	results []error
	calls   atomic.Int32
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return err
}

func TestSignal_UnavailableUntilFirstPoll(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Available())
	assert.False(t, s.Polled())
	assert.True(t, s.CheckedAt().IsZero())
}

func TestPoller_FailuresThenSuccess(t *testing.T) {
	down := errors.New("connection refused")
	pinger := &scriptedPinger{results: []error{down, down, down, nil}}
	signal := NewSignal()
	p := NewPoller(pinger, signal, time.Hour, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.False(t, p.PollOnce(ctx))
		assert.False(t, signal.Available())
		assert.True(t, signal.Polled())
		assert.Equal(t, "connection refused", signal.LastError())
	}

	assert.True(t, p.PollOnce(ctx))
	assert.True(t, signal.Available())
	assert.Empty(t, signal.LastError())
}

func TestPoller_AgainstMockBackend(t *testing.T) {
	mock := backend.NewMockServer()
	defer mock.Close()
	client := backend.New(mock.URL, mock.Client())

	signal := NewSignal()
	p := NewPoller(client, signal, time.Hour, time.Second)
	ctx := context.Background()

	mock.SetHealthy(false)
	for i := 0; i < 3; i++ {
		p.PollOnce(ctx)
	}
	assert.False(t, signal.Available())

	mock.SetHealthy(true)
	p.PollOnce(ctx)
	assert.True(t, signal.Available())
	assert.Equal(t, 4, mock.Requests("GET /settings/health"))
}

func TestPoller_TimeoutMeansUnavailable(t *testing.T) {
	mock := backend.NewMockServer()
	defer mock.Close()
	mock.SetDelay("GET /settings/health", time.Second)
	client := backend.New(mock.URL, mock.Client())

	signal := NewSignal()
	p := NewPoller(client, signal, time.Hour, 20*time.Millisecond)
	assert.False(t, p.PollOnce(context.Background()))
	assert.True(t, signal.Polled())
	assert.False(t, signal.Available())
}

func TestPoller_RunPollsImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pinger := &scriptedPinger{}
	signal := NewSignal()
	p := NewPoller(pinger, signal, 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, signal.Available, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return pinger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestBackendChecker(t *testing.T) {
	signal := NewSignal()
	c := NewBackendChecker(signal)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	signal.set(nil, time.Now())
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	signal.set(errors.New("down"), time.Now())
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "down", res.Error)
}
