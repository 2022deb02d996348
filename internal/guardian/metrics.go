package guardian

import "github.com/prometheus/client_golang/prometheus"

var (
	probeResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "guardian",
		Name:      "probes_total",
		Help:      "Health probe results by service and outcome.",
	}, []string{"service", "outcome"})
	restartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "guardian",
		Name:      "restarts_total",
		Help:      "Automatic restart attempts by service.",
	}, []string{"service"})
	escalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "guardian",
		Name:      "escalations_total",
		Help:      "Services declared failed after exhausting their restart budget.",
	})
	guardianHeartbeat = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aegisd",
		Subsystem: "guardian",
		Name:      "heartbeat_timestamp_seconds",
		Help:      "Unix time of the guardian's latest tick.",
	})
	guardianRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "guardian",
		Name:      "self_restarts_total",
		Help:      "Times the meta-guardian restarted a stalled guardian.",
	})
)

func init() {
	prometheus.MustRegister(probeResults, restartsTotal, escalationsTotal, guardianHeartbeat, guardianRestarts)
}
