package shipper

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "statsd"

// metrics are the pipeline's own counters. A nil *metrics records nothing.
type metrics struct {
	submitted   prometheus.Counter
	dropped     prometheus.Counter
	sent        prometheus.Counter
	sendErrors  prometheus.Counter
	flushes     prometheus.Counter
	flushErrors prometheus.Counter
}

// newMetrics registers the pipeline collectors on reg. Every collector
// carries a client=<name> label so several clients can share one registry.
func newMetrics(reg prometheus.Registerer, name string, queueLen func() int) (*metrics, error) {
	labels := prometheus.Labels{"client": name}
	counter := func(metric, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &metrics{
		submitted:   counter("lines_submitted_total", "Metric lines passed to Ship."),
		dropped:     counter("lines_dropped_total", "Metric lines dropped because the queue was full or closed."),
		sent:        counter("lines_sent_total", "Metric lines handed to the transport without error."),
		sendErrors:  counter("send_errors_total", "Transport send failures."),
		flushes:     counter("flushes_total", "Transport flushes attempted."),
		flushErrors: counter("flush_errors_total", "Transport flush failures."),
	}
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "queue_length",
		Help:        "Metric lines waiting in the submission queue.",
		ConstLabels: labels,
	}, func() float64 { return float64(queueLen()) })

	for _, c := range []prometheus.Collector{
		m.submitted, m.dropped, m.sent, m.sendErrors, m.flushes, m.flushErrors, depth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) incSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *metrics) incDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *metrics) incSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *metrics) incSendErrors() {
	if m != nil {
		m.sendErrors.Inc()
	}
}

func (m *metrics) incFlushes() {
	if m != nil {
		m.flushes.Inc()
	}
}

func (m *metrics) incFlushErrors() {
	if m != nil {
		m.flushErrors.Inc()
	}
}
