package hls

import "time"

// Fetch kinds, also used as metric labels.
const (
	KindManifest = "manifest"
	KindLevel    = "level"
	KindSegment  = "segment"
)

// Budget bounds the attempts for one kind of fetch.
type Budget struct {
	// MaxAttempts counts every attempt including the first.
	MaxAttempts int
	// Delay is the linear backoff unit: the wait before attempt n+1 is n×Delay.
	Delay time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxElapsed caps the whole sequence. Zero disables the ceiling.
	MaxElapsed time.Duration
}

func (b Budget) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * b.Delay
}

// RetryPolicy holds the budgets for manifests, variant (level) playlists and
// segments.
type RetryPolicy struct {
	Manifest Budget
	Level    Budget
	Segment  Budget
}

// DefaultRetryPolicy returns the stock budgets.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Manifest: Budget{MaxAttempts: 6, Delay: time.Second, Timeout: 10 * time.Second, MaxElapsed: 64 * time.Second},
		Level:    Budget{MaxAttempts: 4, Delay: time.Second, Timeout: 10 * time.Second},
		Segment:  Budget{MaxAttempts: 6, Delay: time.Second, Timeout: 20 * time.Second},
	}
}

func (p RetryPolicy) budget(kind string) Budget {
	switch kind {
	case KindManifest:
		return p.Manifest
	case KindLevel:
		return p.Level
	default:
		return p.Segment
	}
}
