package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediabridge",
		Subsystem: "bridge",
		Name:      "commands_total",
		Help:      "Commands applied to engine instances.",
	}, []string{"kind", "result"})
	instanceState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediabridge",
		Subsystem: "bridge",
		Name:      "instance_state",
		Help:      "State of the engine instance: 0 uninitialized, 1 ready, 2 playing, 3 paused, 4 stopped, 5 errored.",
	})
	instances = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediabridge",
		Subsystem: "bridge",
		Name:      "instances",
		Help:      "Live engine instances.",
	})
)

func init() {
	prometheus.MustRegister(commandsTotal, instanceState, instances)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
