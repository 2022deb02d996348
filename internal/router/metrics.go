package router

import "github.com/prometheus/client_golang/prometheus"

var (
	routesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "router",
		Name:      "routes_total",
		Help:      "Requests served, by winning backend.",
	}, []string{"backend"})
	routeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "router",
		Name:      "dispatch_failures_total",
		Help:      "Dispatch attempts that failed, by backend.",
	}, []string{"backend"})
	routeExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aegisd",
		Subsystem: "router",
		Name:      "exhausted_total",
		Help:      "Requests for which every candidate backend failed.",
	})
	routeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aegisd",
		Subsystem: "router",
		Name:      "latency_seconds",
		Help:      "End-to-end routing latency, by winning backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(routesTotal, routeFailures, routeExhausted, routeLatency)
}
