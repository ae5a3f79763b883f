package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/metrics"
)

// Pinger is the backend health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Poller refreshes a Signal from the backend at a fixed interval.
type Poller struct {
	pinger   Pinger
	signal   *Signal
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a poller. timeout bounds a single probe.
func NewPoller(pinger Pinger, signal *Signal, interval, timeout time.Duration) *Poller {
	return &Poller{
		pinger:   pinger,
		signal:   signal,
		interval: interval,
		timeout:  timeout,
		logger:   log.WithComponent("health"),
	}
}

// Run polls once immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce probes the backend and updates the signal.
func (p *Poller) PollOnce(ctx context.Context) bool {
	probeCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	err := p.pinger.Ping(probeCtx)
	if ctx.Err() != nil {
		// Shutdown; keep the last known value.
		return p.signal.Available()
	}

	ok := err == nil
	metrics.RecordHealthPoll(ok)
	metrics.SetBackendAvailable(ok)
	if p.signal.set(err, time.Now()) {
		ev := p.logger.Info()
		if !ok {
			ev = p.logger.Warn().Err(err)
		}
		ev.Str(log.FieldEvent, "health.changed").Bool("available", ok).Msg("backend availability changed")
	}
	return ok
}
