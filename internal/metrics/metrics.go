// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_transitions_total",
		Help: "Reservation state changes by edge and actor",
	}, []string{"from", "to", "actor"})

	SweepReservationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeper_reservation_errors_total",
		Help: "Reservations the sweeper could not advance, by phase and reason",
	}, []string{"phase", "reason"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Scheduled job runs by job and result",
	}, []string{"job", "result"})

	JobSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_skipped_total",
		Help: "Ticks skipped because the previous run of the job was still in flight",
	}, []string{"job"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_job_duration_seconds",
		Help:    "Duration of scheduled job runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawal_requests_total",
		Help: "Withdrawal requests by result",
	}, []string{"result"})

	ReconcileDiscrepancies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "withdrawal_reconcile_discrepancies",
		Help: "Discrepancies found by the last reconciliation scan",
	})

	NotifierDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_dropped_events_total",
		Help: "Events dropped by a notifier sink",
	}, []string{"sink"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notifier_websocket_clients",
		Help: "Connected websocket listeners",
	})
)
