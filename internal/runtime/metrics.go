package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes recorded by InvocationMetrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Report kinds recorded when posting a result to the control plane fails.
const (
	ReportResponse = "response"
	ReportError    = "error"
)

// InvocationMetrics tracks invocation statistics.
type InvocationMetrics struct {
	mu sync.Mutex

	invocationsTotal *prometheus.CounterVec
	durationSeconds  *prometheus.HistogramVec
	reportFailures   *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lambdaflow",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lambdaflow",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewInvocationMetrics creates the collectors. A nil registerer selects
// prometheus.DefaultRegisterer.
func NewInvocationMetrics(registerer prometheus.Registerer) *InvocationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InvocationMetrics{
		registerer:       registerer,
		invocationsTotal: newCounterVec("invocations_total", "Total number of handled invocations", []string{"outcome"}),
		durationSeconds:  newHistogramVec("invocation_duration_seconds", "Time spent in the handler per invocation", prometheus.DefBuckets, []string{"outcome"}),
		reportFailures:   newCounterVec("report_failures_total", "Total number of results that could not be posted to the control plane", []string{"kind"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *InvocationMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.invocationsTotal,
		m.durationSeconds,
		m.reportFailures,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordInvocation records one invocation with its outcome and handler duration.
func (m *InvocationMetrics) RecordInvocation(outcome string, d time.Duration) {
	m.invocationsTotal.WithLabelValues(outcome).Inc()
	m.durationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordReportFailure records a failed response or error post.
func (m *InvocationMetrics) RecordReportFailure(kind string) {
	m.reportFailures.WithLabelValues(kind).Inc()
}

// Reset resets all metrics (useful for testing).
func (m *InvocationMetrics) Reset() {
	m.invocationsTotal.Reset()
	m.durationSeconds.Reset()
	m.reportFailures.Reset()
}
