package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/obsidianstack/emitter/pkg/transport"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultQueueSize   = math.MaxInt32
	DefaultPollTimeout = 1 * time.Second
	DefaultStopGrace   = 30 * time.Second
	DefaultName        = "statsd-sender"
)

// State is the lifecycle state of the worker.
type State int32

const (
	// StateRunning: the worker is consuming the queue.
	StateRunning State = iota
	// StateDraining: Stop was called and the worker is emptying the queue.
	StateDraining
	// StateStopped: the worker has exited. Terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Shipper. The zero value is usable.
type Options struct {
	// QueueSize is the queue capacity. Values <= 0 select DefaultQueueSize.
	QueueSize int

	// PollTimeout bounds how long the worker waits for a line before
	// re-checking for shutdown.
	PollTimeout time.Duration

	// StopGrace bounds how long Stop waits for the queue to drain.
	StopGrace time.Duration

	// ErrorHandler receives send, flush, close and shutdown failures.
	ErrorHandler ErrorHandler

	// Spawner starts the worker. Defaults to GoSpawner().
	Spawner Spawner

	// Clock drives the poll and grace timers. Defaults to the wall clock.
	Clock clock.Clock

	// Registerer, when set, receives the pipeline's Prometheus collectors.
	Registerer prometheus.Registerer

	// Name labels the worker task and the Prometheus collectors.
	Name string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.StopGrace <= 0 {
		o.StopGrace = DefaultStopGrace
	}
	if o.ErrorHandler == nil {
		o.ErrorHandler = NopErrorHandler
	}
	if o.Spawner == nil {
		o.Spawner = GoSpawner()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Shipper queues formatted metric lines and delivers them, in order, to a
// Transport from a single background worker.
//
// Ship may be called from any number of goroutines. The Transport is only
// touched by the worker, plus the final Close in Stop.
type Shipper struct {
	transport   transport.Transport
	queue       *queue
	handler     ErrorHandler
	clock       clock.Clock
	metrics     *metrics
	logger      *slog.Logger
	pollTimeout time.Duration
	stopGrace   time.Duration

	shutdown  atomic.Bool
	abandoned atomic.Bool
	stopped   atomic.Bool
	quit      chan struct{}
	stopOnce  sync.Once
	handle    Handle
}

// New creates a Shipper that owns t and starts its worker. From here on t
// must not be used by anyone else.
func New(t transport.Transport, opts Options) (*Shipper, error) {
	if t == nil {
		return nil, errors.New("shipper: transport is required")
	}
	opts = opts.withDefaults()

	s := &Shipper{
		transport:   t,
		queue:       newQueue(opts.QueueSize),
		handler:     opts.ErrorHandler,
		clock:       opts.Clock,
		logger:      opts.Logger,
		pollTimeout: opts.PollTimeout,
		stopGrace:   opts.StopGrace,
		quit:        make(chan struct{}),
	}

	if opts.Registerer != nil {
		m, err := newMetrics(opts.Registerer, opts.Name, s.queue.Len)
		if err != nil {
			return nil, fmt.Errorf("shipper: register metrics: %w", err)
		}
		s.metrics = m
	}

	s.handle = opts.Spawner.Spawn(opts.Name, s.run)
	s.logger.Debug("shipper: worker started",
		"name", opts.Name,
		"queue_size", opts.QueueSize,
		"poll_timeout", opts.PollTimeout,
	)
	return s, nil
}

// Ship enqueues line for delivery and reports whether it was accepted. It
// never blocks and never panics; when the queue is full or the Shipper is
// stopped the line is dropped.
func (s *Shipper) Ship(line string) bool {
	s.metrics.incSubmitted()
	if !s.queue.offer(line) {
		s.metrics.incDropped()
		return false
	}
	return true
}

// Len returns the number of lines waiting in the queue.
func (s *Shipper) Len() int { return s.queue.Len() }

// State returns the worker's lifecycle state.
func (s *Shipper) State() State {
	switch {
	case s.stopped.Load():
		return StateStopped
	case s.shutdown.Load():
		return StateDraining
	default:
		return StateRunning
	}
}

// Done is closed when the worker has exited.
func (s *Shipper) Done() <-chan struct{} { return s.handle.Done() }

// Stop drains the queue and releases the Transport, waiting at most the
// configured grace period. It is safe to call more than once and from
// several goroutines; later calls return once the first has finished.
func (s *Shipper) Stop() {
	s.StopContext(context.Background())
}

// StopContext is Stop with an interruptible wait. Cancelling ctx is treated
// like an expired grace period: the failure is reported, the worker is
// abandoned and the Transport is still closed.
func (s *Shipper) StopContext(ctx context.Context) {
	s.stopOnce.Do(func() {
		defer s.release()

		s.queue.close()
		s.shutdown.Store(true)
		close(s.quit)

		if exited, err := s.wait(ctx); !exited {
			s.abandon(err)
			return
		}
		s.logger.Debug("shipper: worker drained and stopped")
	})
}

// wait blocks until the worker exits, the grace period expires or ctx is
// done. err is ctx's error when ctx ended the wait.
func (s *Shipper) wait(ctx context.Context) (exited bool, err error) {
	select {
	case <-s.handle.Done():
		return true, nil
	default:
	}

	timer := s.clock.Timer(s.stopGrace)
	defer timer.Stop()

	select {
	case <-s.handle.Done():
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// abandon stops the worker from making further Transport calls and reports
// the timeout. A call already in progress is allowed to finish.
func (s *Shipper) abandon(cause error) {
	s.abandoned.Store(true)
	pending := s.queue.Len()
	s.logger.Warn("shipper: drain timed out, abandoning worker",
		"grace", s.stopGrace, "pending", pending, "err", cause)
	s.report(&ShutdownTimeoutError{Grace: s.stopGrace, Pending: pending, Cause: cause})
}

func (s *Shipper) release() {
	if err := guard(s.transport.Close); err != nil {
		s.report(&CloseError{Err: err})
	}
}

// run is the worker loop. Checking the queue only matters once shutdown has
// been requested: until then the worker keeps waiting, after it the worker
// exits as soon as everything queued before Stop has been attempted.
func (s *Shipper) run() {
	defer s.stopped.Store(true)

	for !s.shutdown.Load() || !s.queue.empty() {
		if s.abandoned.Load() {
			return
		}
		line, ok := s.queue.take(s.clock, s.pollTimeout, s.quit)
		if !ok {
			continue
		}
		if s.abandoned.Load() {
			return
		}
		s.send(line)
		if s.queue.empty() && !s.abandoned.Load() {
			s.flush()
		}
	}
}

func (s *Shipper) send(line string) {
	err := guard(func() error { return s.transport.Send(line) })
	if err != nil {
		s.metrics.incSendErrors()
		s.report(&SendError{Line: line, Err: err})
		return
	}
	s.metrics.incSent()
}

func (s *Shipper) flush() {
	s.metrics.incFlushes()
	if err := guard(s.transport.Flush); err != nil {
		s.metrics.incFlushErrors()
		s.report(&FlushError{Err: err})
	}
}

// report hands err to the ErrorHandler. A panicking handler is ignored.
func (s *Shipper) report(err error) {
	defer func() { _ = recover() }()
	s.handler.Handle(err)
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
