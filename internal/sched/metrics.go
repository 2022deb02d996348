package sched

import "github.com/prometheus/client_golang/prometheus"

var (
	schedAllocatedMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aegisd",
		Subsystem: "sched",
		Name:      "allocated_mb",
		Help:      "Accelerator memory currently allocated in MB",
	})

	schedQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aegisd",
		Subsystem: "sched",
		Name:      "queue_depth",
		Help:      "Admission requests waiting for memory",
	})

	schedEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "sched",
		Name:      "evictions_total",
		Help:      "Total evictions performed to free budget",
	})

	schedRejects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "sched",
		Name:      "rejects_total",
		Help:      "Total allocation requests rejected as unsatisfiable",
	})
)

func init() {
	prometheus.MustRegister(schedAllocatedMB, schedQueueDepth, schedEvictions, schedRejects)
}
