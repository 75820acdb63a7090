// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_submissions_total",
			Help: "Total number of payment submissions by outcome",
		},
		[]string{"outcome"},
	)

	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_admin_decisions_total",
			Help: "Total number of admin decisions by action",
		},
		[]string{"action"},
	)

	RemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_reminders_sent_total",
			Help: "Total number of expiry reminders sent by threshold",
		},
		[]string{"threshold"},
	)

	ExpirationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_expirations_total",
			Help: "Total number of subscriptions expired by the sweep",
		},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_sweep_runs_total",
			Help: "Total number of expiry sweep runs",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "bot_sweep_duration_seconds",
			Help: "Duration of expiry sweep runs in seconds",
		},
	)
)
