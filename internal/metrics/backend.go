// Package metrics holds the Prometheus collectors shared across packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_backend_requests_total",
		Help: "Backend API requests by operation and result (ok, timeout, no_response, server_error)",
	}, []string{"op", "result"})

	backendAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livesitter_backend_available",
		Help: "Backend availability as seen by the health poller (1=available, 0=unavailable)",
	})

	healthPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_health_polls_total",
		Help: "Backend health polls by result",
	}, []string{"result"})
)

// RecordBackendRequest counts a finished backend call.
func RecordBackendRequest(op, result string) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = "unknown"
	}
	backendRequests.WithLabelValues(op, result).Inc()
}

// SetBackendAvailable publishes the current health signal.
func SetBackendAvailable(available bool) {
	if available {
		backendAvailable.Set(1)
		return
	}
	backendAvailable.Set(0)
}

// RecordHealthPoll counts a poll outcome.
func RecordHealthPoll(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	healthPolls.WithLabelValues(result).Inc()
}
