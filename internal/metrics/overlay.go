package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	overlayRefetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_overlay_refetch_total",
		Help: "Overlay set refetches by result",
	}, []string{"result"})

	overlayImageProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_overlay_image_probes_total",
		Help: "Overlay image probes by result (ok, failed)",
	}, []string{"result"})

	framesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livesitter_frames_served_total",
		Help: "Render frames delivered to presentation clients by transport",
	}, []string{"transport"})
)

// RecordOverlayRefetch counts a refetch of the overlay set.
func RecordOverlayRefetch(ok bool) {
	overlayRefetches.WithLabelValues(okLabel(ok)).Inc()
}

// RecordImageProbe counts an overlay image probe.
func RecordImageProbe(ok bool) {
	overlayImageProbes.WithLabelValues(okLabel(ok)).Inc()
}

// IncFrameServed counts a render frame written to a client.
func IncFrameServed(transport string) {
	framesServed.WithLabelValues(transport).Inc()
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
