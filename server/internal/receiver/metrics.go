package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors exposes the receiver counters and the store's live metric
// count to Prometheus. The values are read at scrape time.
func (r *Receiver) Collectors() []prometheus.Collector {
	counter := func(name, help string, v func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "statsd",
			Subsystem: "receiver",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v()) })
	}
	return []prometheus.Collector{
		counter("datagrams_total", "Datagrams read from all listeners.", r.datagrams.Load),
		counter("lines_total", "Lines parsed and stored.", r.lines.Load),
		counter("malformed_total", "Lines rejected by the parser.", r.malformed.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "statsd",
			Subsystem: "receiver",
			Name:      "live_metrics",
			Help:      "Metric names seen within the TTL.",
		}, func() float64 { return float64(len(r.store.List())) }),
	}
}
