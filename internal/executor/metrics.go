package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fincore/internal/logger"
	"fincore/internal/pkg/circuit"
)

// Metrics are the executor's Prometheus collectors.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	fanout    *prometheus.HistogramVec
	circuit   *prometheus.GaugeVec
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fincore",
			Subsystem: "executor",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fincore",
			Subsystem: "executor",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

func newGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fincore",
			Subsystem: "executor",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests:  newCounterVec("requests_total", "Calls by standard, provider and outcome.", []string{"standard", "provider", "outcome"}),
		duration:  newHistogramVec("request_duration_seconds", "End-to-end call latency.", prometheus.DefBuckets, []string{"standard", "provider"}),
		fallbacks: newCounterVec("fallbacks_total", "Retries against a fallback provider.", []string{"standard", "from", "to"}),
		fanout:    newHistogramVec("fanout_items", "Items per fanned-out call.", []float64{1, 2, 5, 10, 20, 50, 100}, []string{"standard"}),
		circuit:   newGaugeVec("circuit_state", "Provider breaker state: 0 closed, 1 open, 2 half-open.", []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.fallbacks, m.fanout, m.circuit)
	}
	return m
}

func (m *Metrics) observe(standard, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(standard, provider, outcome).Inc()
	m.duration.WithLabelValues(standard, provider).Observe(elapsed.Seconds())
}

func (m *Metrics) fallback(standard, from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(standard, from, to).Inc()
}

func (m *Metrics) fannedOut(standard string, n int) {
	if m == nil {
		return
	}
	m.fanout.WithLabelValues(standard).Observe(float64(n))
}

func (m *Metrics) circuitChanged(provider string, from, to circuit.State) {
	logger.Warnf("executor: provider %s circuit %s -> %s", provider, from, to)
	if m == nil {
		return
	}
	m.circuit.WithLabelValues(provider).Set(float64(to))
}
