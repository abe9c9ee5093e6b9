// Package metrics registers the prometheus collectors shared by the
// monitoring and notification pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation cycle counters
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_monitor_cycles_total",
			Help: "Total number of evaluation cycles executed",
		},
	)

	TriggersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_monitor_triggers_total",
			Help: "Total number of triggers emitted after debouncing",
		},
	)

	EvaluationErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_monitor_evaluation_errors_total",
			Help: "Total number of per-alert evaluation failures",
		},
	)

	// Notification pipeline counters
	NotificationsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_enqueued_total",
			Help: "Total number of notifications accepted by the queue",
		},
	)

	NotificationsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_dropped_total",
			Help: "Total number of notifications rejected because the queue was full",
		},
	)

	NotificationsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_dispatched_total",
			Help: "Total number of notifications that reached a terminal state, by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_rate_limited_total",
			Help: "Total number of notifications dropped by the per-user rate limit",
		},
	)

	ChannelAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_channel_attempts_total",
			Help: "Total number of channel delivery attempts, by channel and result",
		},
		[]string{"channel", "result"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewatch_queue_depth",
			Help: "Current number of notifications waiting in the queue",
		},
	)
)
