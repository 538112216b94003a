package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling metrics
	RescheduleOutcomes *prometheus.CounterVec
	SlotComputations   prometheus.Counter

	// Queue metrics
	QueueTransitions *prometheus.CounterVec
	QueueWaiting     *prometheus.GaugeVec

	// Outbox metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		RescheduleOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reschedule_outcomes_total",
			Help:      "Reschedule validation outcomes by rejection kind (or accepted)",
		}, []string{"outcome"}),
		SlotComputations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_computations_total",
			Help:      "Total number of availability computations served",
		}),
		QueueTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_transitions_total",
			Help:      "Queue state machine transitions by action and result",
		}, []string{"action", "result"}),
		QueueWaiting: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_waiting_entries",
			Help:      "Current number of waiting entries per branch",
		}, []string{"branch_id"}),
		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Database operations by name and result",
		}, []string{"operation", "result"}),
	}
}

// NewTestMetrics returns metrics backed by a throwaway registry so unit
// tests can construct services without clashing on the default registerer.
func NewTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		RescheduleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reschedule_outcomes_total",
		}, []string{"outcome"}),
		SlotComputations: factory.NewCounter(prometheus.CounterOpts{
			Name: "slot_computations_total",
		}),
		QueueTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_transitions_total",
		}, []string{"action", "result"}),
		QueueWaiting: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_waiting_entries",
		}, []string{"branch_id"}),
		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_processed_total",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbox_events_failed_total",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "outbox_processing_duration_seconds",
		}),
		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "database_operations_total",
		}, []string{"operation", "result"}),
	}
}
