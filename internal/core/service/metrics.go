package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts pipeline outcomes per transport. A nil *Metrics records nothing.
type Metrics struct {
	received   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	triggered  *prometheus.CounterVec
	replies    *prometheus.CounterVec
	failures   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sosibot",
			Name:      name,
			Help:      help,
		}, []string{"transport"})
		reg.MustRegister(c)
		return c
	}

	return &Metrics{
		received:   counter("messages_received_total", "Inbound messages that passed the batch filter."),
		duplicates: counter("messages_duplicate_total", "Inbound messages dropped as already processed."),
		triggered:  counter("messages_triggered_total", "Inbound messages that triggered a reply."),
		replies:    counter("replies_sent_total", "Replies sent successfully."),
		failures:   counter("reply_failures_total", "Triggered messages that ended without a reply."),
	}
}

func (m *Metrics) Received(transport string) {
	if m != nil {
		m.received.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) Duplicate(transport string) {
	if m != nil {
		m.duplicates.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) Triggered(transport string) {
	if m != nil {
		m.triggered.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) Replied(transport string) {
	if m != nil {
		m.replies.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) Failed(transport string) {
	if m != nil {
		m.failures.WithLabelValues(transport).Inc()
	}
}
