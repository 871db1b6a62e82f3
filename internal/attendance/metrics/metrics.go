// Package metrics provides observability for the attendance module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the attendance module's Prometheus metrics.
type Metrics struct {
	// Check-in/check-out attempts by operation and outcome (accepted or the
	// rejection code).
	Attempts *prometheus.CounterVec

	// Biometric verification latency, split by result.
	VerifyLatency *prometheus.HistogramVec

	// Full gate latency per operation.
	GateLatency *prometheus.HistogramVec

	// Currently open sessions.
	OpenSessions prometheus.Gauge

	// Bootstrap enrollments performed during first check-ins.
	Enrollments prometheus.Counter
}

// New creates and registers all attendance metrics.
func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_attendance_attempts_total",
			Help: "Attendance attempts by operation and outcome",
		}, []string{"operation", "outcome"}), // operation: "check_in", "check_out", "force_check_out"

		VerifyLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_biometric_verify_duration_seconds",
			Help:    "Duration of biometric enrollment/verification by result",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"result"}), // result: "match", "mismatch", "enrolled", "error", "timeout"

		GateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_gate_duration_seconds",
			Help:    "Duration of full gate evaluation including verification",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),

		OpenSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_attendance_open_sessions",
			Help: "Number of currently open attendance sessions",
		}),

		Enrollments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_biometric_enrollments_total",
			Help: "Bootstrap biometric enrollments performed during check-in",
		}),
	}
}

// IncrementAttempt records one gate attempt and its outcome.
func (m *Metrics) IncrementAttempt(operation, outcome string) {
	if m != nil {
		m.Attempts.WithLabelValues(operation, outcome).Inc()
	}
}

// ObserveVerifyLatency records the duration of one biometric operation.
func (m *Metrics) ObserveVerifyLatency(result string, d time.Duration) {
	if m != nil {
		m.VerifyLatency.WithLabelValues(result).Observe(d.Seconds())
	}
}

// ObserveGateLatency records the duration of one full gate evaluation.
func (m *Metrics) ObserveGateLatency(operation string, d time.Duration) {
	if m != nil {
		m.GateLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// SessionOpened adjusts the open-session gauge upward.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.OpenSessions.Inc()
	}
}

// SessionClosed adjusts the open-session gauge downward.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.OpenSessions.Dec()
	}
}

// IncrementEnrollments records one bootstrap enrollment.
func (m *Metrics) IncrementEnrollments() {
	if m != nil {
		m.Enrollments.Inc()
	}
}
