package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	messages   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	clients    *prometheus.GaugeVec
}

// NewMetrics registers the stream collectors with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fincore",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Rows accepted into stream buffers.",
		}, []string{"provider"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fincore",
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Rows dropped by reason: queue, buffer or invalid.",
		}, []string{"provider", "reason"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fincore",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Successful reconnects.",
		}, []string{"provider"}),
		clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fincore",
			Subsystem: "stream",
			Name:      "active_clients",
			Help:      "Connected stream clients.",
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.messages, m.dropped, m.reconnects, m.clients)
	}
	return m
}

func (m *Metrics) message(provider string) {
	if m != nil {
		m.messages.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) drop(provider, reason string) {
	if m != nil {
		m.dropped.WithLabelValues(provider, reason).Inc()
	}
}

func (m *Metrics) reconnect(provider string) {
	if m != nil {
		m.reconnects.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) clientUp(provider string) {
	if m != nil {
		m.clients.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) clientDown(provider string) {
	if m != nil {
		m.clients.WithLabelValues(provider).Dec()
	}
}
