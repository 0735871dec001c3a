package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling
	AppointmentsBooked   *prometheus.CounterVec
	BookingConflicts     prometheus.Counter
	AppointmentsCanceled prometheus.Counter
	SlotLocks            *prometheus.CounterVec

	// Audit
	AuditRecords *prometheus.CounterVec
	AuditLatency prometheus.Histogram

	// Authentication
	LoginAttempts *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics on reg
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AppointmentsBooked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "appointments_booked_total",
			Help:      "Total number of booked appointments",
		}, []string{"modality"}),
		BookingConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "booking_conflicts_total",
			Help:      "Total number of booking attempts rejected for an occupied slot",
		}),
		AppointmentsCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "appointments_canceled_total",
			Help:      "Total number of cancelled appointments",
		}),
		SlotLocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "slot_locks_total",
			Help:      "Slot lock acquisitions by result",
		}, []string{"result"}),

		AuditRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "records_total",
			Help:      "Audit record writes by result",
		}, []string{"result"}),
		AuditLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "write_duration_seconds",
			Help:      "Time spent writing audit records",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
	}
}

// NewNop builds metrics on a private registry, for tests and tools
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "test")
}
