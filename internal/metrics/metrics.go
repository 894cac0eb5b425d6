// Package metrics holds the Prometheus collectors of a branchlens session.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "branchlens"

// Metrics is nil-safe: every method is a no-op on a nil receiver so callers
// that do not care about metrics can pass nil.
type Metrics struct {
	ScheduledTotal        *prometheus.CounterVec
	OracleCallsTotal      *prometheus.CounterVec
	OracleDurationSeconds prometheus.Histogram
	QueueDepth            prometheus.Gauge
	RefreshesTotal        *prometheus.CounterVec
	EvictionsTotal        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_total",
				Help:      "Status requests by admission result.",
			},
			[]string{"result"},
		),
		OracleCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oracle_calls_total",
				Help:      "Branch lookups by outcome.",
			},
			[]string{"outcome"},
		),
		OracleDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "oracle_duration_seconds",
				Help:      "Duration of branch lookups in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Requests waiting for the worker.",
			},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "View refresh requests by outcome.",
			},
			[]string{"outcome"},
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evictions_total",
				Help:      "Cache evictions by reason.",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.ScheduledTotal,
			m.OracleCallsTotal,
			m.OracleDurationSeconds,
			m.QueueDepth,
			m.RefreshesTotal,
			m.EvictionsTotal,
		)
	}
	return m
}

func (m *Metrics) Scheduled(result string, depth int) {
	if m == nil {
		return
	}
	m.ScheduledTotal.WithLabelValues(result).Inc()
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) Dequeued(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) OracleCall(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.OracleCallsTotal.WithLabelValues(outcome).Inc()
	m.OracleDurationSeconds.Observe(d.Seconds())
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Evicted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EvictionsTotal.WithLabelValues(reason).Add(float64(n))
}
