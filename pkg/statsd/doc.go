// Package statsd is a non-blocking statsd client.
//
// Metric methods (Count, Gauge, Timing, Histogram, Distribution, Set and
// their variants), Event and ServiceCheck format a DogStatsD line and hand
// it to Submit. The WithRate variants always carry |@rate, even at 1. Submit puts
// the line on an in-memory queue and returns immediately; a background worker
// owned by the client writes queued lines to the configured transport and
// flushes it whenever the queue runs empty. No method blocks on I/O, returns
// an error or panics: failures go to the ErrorHandler, and lines that do not
// fit in the queue are dropped.
//
// Usage:
//
//	client, err := statsd.New(
//	    statsd.WithTransportConfig(transport.Config{Kind: transport.KindUDP, Address: "localhost:8125"}),
//	    statsd.WithPrefix("web"),
//	    statsd.WithConstantTags("env:prod"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Stop()
//
//	client.Increment("requests", "route:/api")
//	client.Timing("latency", 42*time.Millisecond)
//
// Stop drains the queue, waiting at most the stop grace period (30s by
// default), and closes the transport.
package statsd
