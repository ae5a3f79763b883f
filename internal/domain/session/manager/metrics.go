package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/livesitter/livesitter/internal/domain/session/model"
)

var (
	fsmTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesitter_session_transitions_total",
			Help: "Session state transitions",
		},
		[]string{"state_from", "state_to"},
	)

	playbackFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesitter_session_playback_failures_total",
			Help: "Playback errors reported by attachments, by category and recovery class",
		},
		[]string{"category", "class"},
	)

	mediaRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livesitter_session_media_recoveries_total",
			Help: "In-place media recoveries requested",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livesitter_sessions_active",
			Help: "Sessions with a running actor",
		},
	)

	attachesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesitter_session_attaches_total",
			Help: "Attach attempts by result",
		},
		[]string{"result"},
	)
)

func recordTransition(from, to model.SessionState) {
	fsmTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func recordFailure(category string, class model.ErrorClass) {
	playbackFailures.WithLabelValues(category, string(class)).Inc()
}

func recordAttach(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	attachesTotal.WithLabelValues(result).Inc()
}
