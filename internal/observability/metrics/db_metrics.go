package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "escalation_notifications_pending",
			Help: "Escalation notifications awaiting delivery",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM escalation_notifications WHERE status = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sla_tracking_open",
			Help: "Open, unresolved, unpaused SLA tracking records",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM sla_tracking WHERE resolved_at IS NULL AND is_paused = FALSE")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
