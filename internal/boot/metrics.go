package boot

import "github.com/prometheus/client_golang/prometheus"

var bootsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "aegisd",
	Subsystem: "boot",
	Name:      "runs_total",
	Help:      "Boot attempts by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(bootsTotal)
}
