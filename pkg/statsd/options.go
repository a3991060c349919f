package statsd

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/obsidianstack/emitter/pkg/shipper"
	"github.com/obsidianstack/emitter/pkg/transport"
)

// ErrorHandler receives failures from the background pipeline.
type ErrorHandler = shipper.ErrorHandler

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc = shipper.ErrorHandlerFunc

// Transport is the wire sink a Client writes to.
type Transport = transport.Transport

// Option configures a Client.
type Option func(*options)

type options struct {
	prefix       string
	constantTags []string
	transport    Transport
	transportCfg *transport.Config
	shipper      shipper.Options
}

// WithPrefix prepends prefix and a dot to every metric name.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithConstantTags adds tags to every line, ahead of per-call tags.
func WithConstantTags(tags ...string) Option {
	return func(o *options) { o.constantTags = append(o.constantTags, tags...) }
}

// WithTransport makes the client write to t. The client takes ownership and
// closes t on Stop.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTransportConfig makes New build the transport from cfg.
func WithTransportConfig(cfg transport.Config) Option {
	return func(o *options) { o.transportCfg = &cfg }
}

// WithQueueSize bounds the number of lines waiting to be sent.
func WithQueueSize(n int) Option {
	return func(o *options) { o.shipper.QueueSize = n }
}

// WithStopGrace bounds how long Stop waits for the queue to drain.
func WithStopGrace(d time.Duration) Option {
	return func(o *options) { o.shipper.StopGrace = d }
}

// WithPollTimeout sets how long the idle worker waits before re-checking
// for shutdown.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) { o.shipper.PollTimeout = d }
}

// WithErrorHandler routes pipeline failures to h. The default discards them.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.shipper.ErrorHandler = h }
}

// WithSpawner replaces the goroutine spawner that starts the worker.
func WithSpawner(s shipper.Spawner) Option {
	return func(o *options) { o.shipper.Spawner = s }
}

// WithClock replaces the clock driving the poll and grace timers.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.shipper.Clock = c }
}

// WithRegisterer registers the pipeline's Prometheus collectors on reg.
func WithRegisterer(reg prometheus.Registerer, name string) Option {
	return func(o *options) {
		o.shipper.Registerer = reg
		o.shipper.Name = name
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.shipper.Logger = l }
}
