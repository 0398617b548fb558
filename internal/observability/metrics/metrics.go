package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "servicedesk_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	escalationsFired *prometheus.CounterVec

	sweepTotal   *prometheus.CounterVec
	sweepLatency *prometheus.HistogramVec
	sweepTickets *prometheus.CounterVec

	deliveryResults *prometheus.CounterVec

	resolverDegraded prometheus.Counter
	duplicateSkipped prometheus.Counter
)

// Init registers escalation metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		escalationsFired = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalations_fired_total",
				Help: "Total fired escalation notifications by trigger type",
			},
			[]string{"trigger_type"},
		)

		sweepTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_sweeps_total",
				Help: "Total escalation sweeps by result",
			},
			[]string{"result"},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "escalation_sweep_latency_seconds",
				Help:    "Escalation sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		sweepTickets = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_sweep_tickets_total",
				Help: "Total per-ticket sweep evaluations by result",
			},
			[]string{"result"},
		)

		deliveryResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_delivery_total",
				Help: "Total notification delivery outcomes by status",
			},
			[]string{"status"},
		)

		resolverDegraded = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_resolver_degraded_total",
				Help: "Total escalations recorded with degraded recipient resolution",
			},
		)
		duplicateSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_duplicates_skipped_total",
				Help: "Total duplicate escalation inserts skipped as already handled",
			},
		)

		prometheus.MustRegister(
			escalationsFired,
			sweepTotal,
			sweepLatency,
			sweepTickets,
			deliveryResults,
			resolverDegraded,
			duplicateSkipped,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncEscalationFired increments the fired counter for a trigger type.
func IncEscalationFired(triggerType string) {
	if triggerType == "" {
		triggerType = "unknown"
	}
	if escalationsFired != nil {
		escalationsFired.WithLabelValues(triggerType).Inc()
	}
}

// ObserveSweep records sweep duration and result.
func ObserveSweep(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if sweepTotal != nil {
		sweepTotal.WithLabelValues(result).Inc()
	}
	if sweepLatency != nil {
		sweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncSweepTicket increments per-ticket sweep outcomes.
func IncSweepTicket(result string) {
	if result == "" {
		result = resultSuccess
	}
	if sweepTickets != nil {
		sweepTickets.WithLabelValues(result).Inc()
	}
}

// IncDelivery increments delivery outcome counters.
func IncDelivery(status string) {
	if status == "" {
		status = "unknown"
	}
	if deliveryResults != nil {
		deliveryResults.WithLabelValues(status).Inc()
	}
}

// IncResolverDegraded increments the degraded-resolution counter.
func IncResolverDegraded() {
	if resolverDegraded != nil {
		resolverDegraded.Inc()
	}
}

// IncDuplicateSkipped increments the benign-duplicate counter.
func IncDuplicateSkipped() {
	if duplicateSkipped != nil {
		duplicateSkipped.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
