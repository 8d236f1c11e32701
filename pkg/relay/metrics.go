package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "relay",
		Name:      "events_total",
		Help:      "Events queued for the host.",
	})
	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "relay",
		Name:      "events_dropped_total",
		Help:      "Events evicted from a full queue.",
	})
	eventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "relay",
		Name:      "events_delivered_total",
		Help:      "Events delivered to subscribers.",
	})
	eventsQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediabridge",
		Subsystem: "relay",
		Name:      "events_queued",
		Help:      "Events waiting in queues.",
	})
)

func init() {
	prometheus.MustRegister(eventsPushed, eventsDropped, eventsDelivered, eventsQueued)
}
