package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/livesitter/livesitter/internal/domain/session/ports"
	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/metrics"
)

// maxBodyBytes bounds playlist and segment downloads.
const maxBodyBytes = 64 << 20

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

// fetch downloads url within the budget for kind. Every failed attempt that
// will be retried is reported as a non-fatal network error. Cancellation of
// ctx is returned as is.
func (h *Handle) fetch(ctx context.Context, kind, url string) ([]byte, error) {
	budget := h.policy.budget(kind)
	attempts := max(budget.MaxAttempts, 1)
	start := time.Now()

	var (
		lastErr error
		made    int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		body, err := h.fetchOnce(ctx, url, budget.Timeout)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		wait := budget.backoff(attempt)
		if budget.MaxElapsed > 0 && time.Since(start)+wait >= budget.MaxElapsed {
			break
		}

		metrics.IncFetchRetry(kind)
		h.logger.Debug().
			Str(log.FieldEvent, "hls.fetch_retry").
			Str("kind", kind).
			Int(log.FieldAttempt, attempt).
			Str(log.FieldURL, url).
			Err(err).
			Msg("fetch failed, retrying")
		retry := &ports.PlaybackError{
			Category: ports.CategoryNetwork,
			Details:  fmt.Sprintf("%s attempt %d", kind, attempt),
			Err:      err,
		}
		if !h.emit(ctx, ports.Event{Kind: ports.EventError, Err: retry}) {
			return nil, ctx.Err()
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	metrics.IncFetchFailure(kind)
	return nil, &fetchError{kind: kind, url: url, attempts: made, err: lastErr}
}

func (h *Handle) fetchOnce(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
