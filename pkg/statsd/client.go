package statsd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/obsidianstack/emitter/pkg/shipper"
	"github.com/obsidianstack/emitter/pkg/transport"
)

// Client formats metrics and ships them asynchronously. All methods are safe
// for concurrent use.
type Client struct {
	prefix       string
	constantTags []string
	shipper      *shipper.Shipper

	submitted atomic.Uint64
	dropped   atomic.Uint64
}

// Stats are the client's submission counters.
type Stats struct {
	Submitted uint64
	Dropped   uint64
}

// New builds a Client and starts its worker. A transport must be supplied
// with WithTransport or WithTransportConfig; construction is the only place a
// transport error is returned.
func New(opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := o.transport
	if t == nil {
		if o.transportCfg == nil {
			return nil, errors.New("statsd: no transport configured")
		}
		var err error
		if t, err = transport.New(*o.transportCfg); err != nil {
			return nil, fmt.Errorf("statsd: %w", err)
		}
	}

	s, err := shipper.New(t, o.shipper)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("statsd: %w", err)
	}

	return &Client{
		prefix:       o.prefix,
		constantTags: o.constantTags,
		shipper:      s,
	}, nil
}

// Submit queues a fully formatted line. It never blocks; the line is dropped
// when the queue is full or the client is stopped.
func (c *Client) Submit(line string) {
	c.submitted.Add(1)
	if !c.shipper.Ship(line) {
		c.dropped.Add(1)
	}
}

// Stop drains queued lines and closes the transport, waiting at most the
// stop grace period. Safe to call more than once.
func (c *Client) Stop() { c.shipper.Stop() }

// StopContext is Stop with a wait that ends early when ctx is done.
func (c *Client) StopContext(ctx context.Context) { c.shipper.StopContext(ctx) }

// Stats returns the submission counters.
func (c *Client) Stats() Stats {
	return Stats{Submitted: c.submitted.Load(), Dropped: c.dropped.Load()}
}

// Pending returns the number of lines waiting to be sent.
func (c *Client) Pending() int { return c.shipper.Len() }

// Count adds delta to a counter.
func (c *Client) Count(name string, delta int64, tags ...string) {
	c.submitInt(name, delta, typeCount, unsampled, tags)
}

// CountWithRate adds delta to a counter sampled at rate.
func (c *Client) CountWithRate(name string, delta int64, rate float64, tags ...string) {
	c.submitInt(name, delta, typeCount, sampledAt(rate), tags)
}

// Increment adds one to a counter.
func (c *Client) Increment(name string, tags ...string) {
	c.submitInt(name, 1, typeCount, unsampled, tags)
}

// Decrement subtracts one from a counter.
func (c *Client) Decrement(name string, tags ...string) {
	c.submitInt(name, -1, typeCount, unsampled, tags)
}

// Gauge records the current value of a gauge.
func (c *Client) Gauge(name string, value float64, tags ...string) {
	c.submitFloat(name, value, typeGauge, unsampled, tags)
}

// GaugeWithRate records a gauge value sampled at rate.
func (c *Client) GaugeWithRate(name string, value float64, rate float64, tags ...string) {
	c.submitFloat(name, value, typeGauge, sampledAt(rate), tags)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, d time.Duration, tags ...string) {
	c.submitInt(name, d.Milliseconds(), typeTiming, unsampled, tags)
}

// TimingWithRate records a duration in milliseconds sampled at rate.
func (c *Client) TimingWithRate(name string, d time.Duration, rate float64, tags ...string) {
	c.submitInt(name, d.Milliseconds(), typeTiming, sampledAt(rate), tags)
}

// Histogram records a value to be tracked with percentiles.
func (c *Client) Histogram(name string, value float64, tags ...string) {
	c.submitFloat(name, value, typeHistogram, unsampled, tags)
}

// HistogramWithRate records a histogram value sampled at rate.
func (c *Client) HistogramWithRate(name string, value float64, rate float64, tags ...string) {
	c.submitFloat(name, value, typeHistogram, sampledAt(rate), tags)
}

// Distribution records a value aggregated server side across hosts.
func (c *Client) Distribution(name string, value float64, tags ...string) {
	c.submitFloat(name, value, typeDistribution, unsampled, tags)
}

// DistributionWithRate records a distribution value sampled at rate.
func (c *Client) DistributionWithRate(name string, value float64, rate float64, tags ...string) {
	c.submitFloat(name, value, typeDistribution, sampledAt(rate), tags)
}

// Set counts unique occurrences of value.
func (c *Client) Set(name string, value string, tags ...string) {
	c.Submit(formatLine(c.prefix, name, value, typeSet, unsampled, c.constantTags, tags))
}
