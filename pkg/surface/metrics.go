package surface

import "github.com/prometheus/client_golang/prometheus"

var (
	renderPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "surface",
		Name:      "render_passes_total",
		Help:      "Render passes run on bound surfaces.",
	})
	renderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "surface",
		Name:      "render_errors_total",
		Help:      "Render passes that failed.",
	})
	renderCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "surface",
		Name:      "render_requests_coalesced_total",
		Help:      "Render requests merged into an already queued pass.",
	})
	renderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mediabridge",
		Subsystem: "surface",
		Name:      "render_duration_seconds",
		Help:      "Render pass duration.",
		Buckets:   []float64{.001, .002, .004, .008, .016, .033, .066, .1, .25},
	})
	surfaceBound = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediabridge",
		Subsystem: "surface",
		Name:      "bound",
		Help:      "1 if a surface is bound.",
	})
)

func init() {
	prometheus.MustRegister(renderPasses, renderErrors, renderCoalesced, renderDuration, surfaceBound)
}
