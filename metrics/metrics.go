// Package metrics declares the prometheus collectors docxfer exposes over
// /metrics, following forbearing-gst/metrics/metrics.go's pattern of
// package-level collector variables registered once from Init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "docxfer"
)

var (
	// FacadeQueriesTotal counts queries issued through the Connection
	// Facade, per server key and outcome.
	FacadeQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "facade",
		Name:      "queries_total",
		Help:      "Total queries issued through the connection facade.",
	}, []string{"server", "outcome"})

	// FacadeQueryLatencySeconds observes per-server query latency; combined
	// with the count it yields the running average the facade's telemetry
	// policy (spec.md §4.5) requires.
	FacadeQueryLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "facade",
		Name:      "query_latency_seconds",
		Help:      "Observed query latency through the connection facade.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"server"})

	// FacadeCircuitState reports the gobreaker state per server key (0 =
	// closed, 1 = half-open, 2 = open).
	FacadeCircuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "facade",
		Name:      "circuit_state",
		Help:      "Circuit breaker state per server key (0=closed,1=half-open,2=open).",
	}, []string{"server"})

	// ConsecutiveIncrementsTotal counts successful Allocate/Reserve
	// increments per counter name.
	ConsecutiveIncrementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consecutive",
		Name:      "increments_total",
		Help:      "Total counter increments, per counter name.",
	}, []string{"counter"})

	// ConsecutiveResetsTotal counts Reset calls per counter name.
	ConsecutiveResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consecutive",
		Name:      "resets_total",
		Help:      "Total counter resets, per counter name.",
	}, []string{"counter"})

	// ConsecutiveActiveReservations is registered for outstanding
	// reservations per counter; no code in docxfer sets it, so it exports
	// no series.
	ConsecutiveActiveReservations = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "consecutive",
		Name:      "active_reservations",
		Help:      "Outstanding reservations per counter name.",
	}, []string{"counter"})

	// ConsecutiveSweptTotal counts reservations flipped reserved->cancelled
	// by the expired-reservation sweeper.
	ConsecutiveSweptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consecutive",
		Name:      "swept_total",
		Help:      "Expired reservations reclaimed by the sweeper.",
	}, []string{"counter"})

	// ExecutionsTotal counts finished executions per mapping and final
	// status.
	ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "execution",
		Name:      "total",
		Help:      "Finished executions per mapping and status.",
	}, []string{"mapping", "status"})

	// ExecutionDocumentsProcessed counts processed/failed/skipped documents
	// per mapping.
	ExecutionDocumentsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "execution",
		Name:      "documents_total",
		Help:      "Documents processed per mapping and outcome.",
	}, []string{"mapping", "outcome"})
)

// Init registers every collector against the default prometheus registry.
// Call once at process start.
func Init() {
	prometheus.MustRegister(
		FacadeQueriesTotal,
		FacadeQueryLatencySeconds,
		FacadeCircuitState,
		ConsecutiveIncrementsTotal,
		ConsecutiveResetsTotal,
		ConsecutiveActiveReservations,
		ConsecutiveSweptTotal,
		ExecutionsTotal,
		ExecutionDocumentsProcessed,
	)
}
