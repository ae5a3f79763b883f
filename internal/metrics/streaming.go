package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_hls_fetch_retries_total",
		Help: "Retried HLS fetch attempts by kind (manifest, level, segment)",
	}, []string{"kind"})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_hls_fetch_failures_total",
		Help: "HLS fetches that exhausted their retry budget, by kind",
	}, []string{"kind"})

	segmentsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livesitter_hls_segments_appended_total",
		Help: "Media segments handed to a presentation surface",
	})

	mediaDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livesitter_hls_media_decode_errors_total",
		Help: "Segments rejected by a presentation surface",
	})
)

// IncFetchRetry records one retried fetch attempt.
func IncFetchRetry(kind string) {
	fetchRetries.WithLabelValues(kind).Inc()
}

// IncFetchFailure records an exhausted fetch budget.
func IncFetchFailure(kind string) {
	fetchFailures.WithLabelValues(kind).Inc()
}

// IncSegmentAppended records a segment accepted by the surface.
func IncSegmentAppended() {
	segmentsAppended.Inc()
}

// IncMediaDecodeError records a segment the surface could not decode.
func IncMediaDecodeError() {
	mediaDecodeErrors.Inc()
}
