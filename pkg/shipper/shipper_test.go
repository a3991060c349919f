package shipper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// recorder is a Transport that records every call in order.
type recorder struct {
	mu        sync.Mutex
	events    []string
	sendErrs  map[string]error
	flushErr  error
	closeErr  error
	panicOn   string
	closed    int
	sendGate  chan struct{} // when set, Send blocks until it is closed
	entered   chan struct{} // when set, signalled as Send is entered
	afterStop bool          // a call arrived after Close
}

func newRecorder() *recorder {
	return &recorder{sendErrs: map[string]error{}}
}

func (r *recorder) Send(line string) error {
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.sendGate != nil {
		<-r.sendGate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed > 0 {
		r.afterStop = true
	}
	r.events = append(r.events, "send:"+line)
	if line == r.panicOn {
		panic("transport exploded")
	}
	return r.sendErrs[line]
}

func (r *recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed > 0 {
		r.afterStop = true
	}
	r.events = append(r.events, "flush")
	return r.flushErr
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return r.closeErr
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// errorSink collects reported errors.
type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (e *errorSink) Handle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errorSink) all() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// gatedSpawner holds the worker back until release is closed, so tests can
// fill the queue with no drain in between.
type gatedSpawner struct {
	release chan struct{}
}

func newGatedSpawner() *gatedSpawner {
	return &gatedSpawner{release: make(chan struct{})}
}

func (g *gatedSpawner) Spawn(_ string, fn func()) Handle {
	done := make(doneHandle)
	go func() {
		defer close(done)
		<-g.release
		fn()
	}()
	return done
}

func (g *gatedSpawner) start() { close(g.release) }

func newTestShipper(t *testing.T, tr *recorder, opts Options) *Shipper {
	t.Helper()
	s, err := New(tr, opts)
	assert.NilError(t, err)
	return s
}

// advanceUntil moves clk forward by step until done is closed.
func advanceUntil(t *testing.T, clk *clock.Mock, step time.Duration, done <-chan struct{}) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("timed out advancing the mock clock")
		case <-time.After(5 * time.Millisecond):
			clk.Add(step)
		}
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func Test_New_RequiresTransport(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorContains(t, err, "transport is required")
}

func Test_Shipper_OverflowDropsWithoutDrain(t *testing.T) {
	tr := newRecorder()
	errs := &errorSink{}
	sp := newGatedSpawner()
	s := newTestShipper(t, tr, Options{QueueSize: 3, Spawner: sp, ErrorHandler: errs})

	var accepted []bool
	for _, l := range []string{"a", "b", "c", "d"} {
		accepted = append(accepted, s.Ship(l))
	}
	assert.DeepEqual(t, []bool{true, true, true, false}, accepted)

	sp.start()
	s.Stop()

	assert.DeepEqual(t, []string{"send:a", "send:b", "send:c", "flush"}, tr.snapshot())
	assert.Check(t, is.Len(errs.all(), 0))
	assert.Equal(t, StateStopped, s.State())
}

func Test_Shipper_BurstFlushesOnce(t *testing.T) {
	const k = 50
	tr := newRecorder()
	sp := newGatedSpawner()
	s := newTestShipper(t, tr, Options{Spawner: sp})

	var want []string
	for i := 0; i < k; i++ {
		line := fmt.Sprintf("burst.%d:1|c", i)
		assert.Assert(t, s.Ship(line))
		want = append(want, "send:"+line)
	}
	want = append(want, "flush")

	sp.start()
	s.Stop()

	assert.DeepEqual(t, want, tr.snapshot())
}

func Test_Shipper_StopDrainsThenStops(t *testing.T) {
	tr := newRecorder()
	errs := &errorSink{}
	s := newTestShipper(t, tr, Options{ErrorHandler: errs})

	s.Ship("x")
	s.Stop()

	assert.DeepEqual(t, []string{"send:x", "flush"}, tr.snapshot())
	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, tr.closeCount())
	assert.Check(t, is.Len(errs.all(), 0))
	waitClosed(t, s.Done(), "worker exit")
}

func Test_Shipper_DeliversInOrderAcrossBatches(t *testing.T) {
	tr := newRecorder()
	s := newTestShipper(t, tr, Options{})

	var want []string
	for i := 0; i < 200; i++ {
		line := fmt.Sprintf("m:%d|g", i)
		s.Ship(line)
		want = append(want, "send:"+line)
	}
	s.Stop()

	var sends []string
	for _, ev := range tr.snapshot() {
		if ev != "flush" {
			sends = append(sends, ev)
		}
	}
	assert.DeepEqual(t, want, sends)
	// The last call is always a flush.
	events := tr.snapshot()
	assert.Equal(t, "flush", events[len(events)-1])
}

func Test_Shipper_StopTimeoutStillReleasesTransport(t *testing.T) {
	clk := clock.NewMock()
	tr := newRecorder()
	tr.sendGate = make(chan struct{})
	tr.entered = make(chan struct{}, 1)
	errs := &errorSink{}
	s := newTestShipper(t, tr, Options{
		StopGrace:    30 * time.Second,
		Clock:        clk,
		ErrorHandler: errs,
	})

	s.Ship("stuck")
	s.Ship("never")
	waitClosed(t, tr.entered, "send to start")

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	advanceUntil(t, clk, 30*time.Second, stopped)

	reported := errs.all()
	assert.Assert(t, is.Len(reported, 1))
	var timeout *ShutdownTimeoutError
	assert.Assert(t, errors.As(reported[0], &timeout))
	assert.Equal(t, 30*time.Second, timeout.Grace)
	assert.Equal(t, 1, timeout.Pending)
	assert.Assert(t, timeout.Cause == nil)
	assert.Equal(t, 1, tr.closeCount())

	// Let the in-flight send finish; the abandoned worker must not touch
	// the transport again.
	close(tr.sendGate)
	waitClosed(t, s.Done(), "abandoned worker exit")

	assert.DeepEqual(t, []string{"send:stuck"}, tr.snapshot())
	assert.Equal(t, StateStopped, s.State())
}

func Test_Shipper_StopContextInterrupted(t *testing.T) {
	tr := newRecorder()
	tr.sendGate = make(chan struct{})
	tr.entered = make(chan struct{}, 1)
	errs := &errorSink{}
	s := newTestShipper(t, tr, Options{ErrorHandler: errs})
	defer close(tr.sendGate)

	s.Ship("stuck")
	waitClosed(t, tr.entered, "send to start")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.StopContext(ctx)

	reported := errs.all()
	assert.Assert(t, is.Len(reported, 1))
	var timeout *ShutdownTimeoutError
	assert.Assert(t, errors.As(reported[0], &timeout))
	assert.Assert(t, errors.Is(timeout, context.Canceled))
	assert.Equal(t, 1, tr.closeCount())
}

func Test_Shipper_StopIsIdempotent(t *testing.T) {
	tr := newRecorder()
	s := newTestShipper(t, tr, Options{})
	s.Ship("once")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()
	s.Stop()

	assert.Equal(t, 1, tr.closeCount())
	assert.DeepEqual(t, []string{"send:once", "flush"}, tr.snapshot())
}

func Test_Shipper_ShipAfterStopIsDropped(t *testing.T) {
	tr := newRecorder()
	s := newTestShipper(t, tr, Options{})
	s.Stop()

	assert.Assert(t, !s.Ship("late"))
	assert.Check(t, is.Len(tr.snapshot(), 0))
	assert.Check(t, !tr.afterStop)
}

func Test_Shipper_SendFailureIsReportedAndLoopContinues(t *testing.T) {
	tr := newRecorder()
	boom := errors.New("connection refused")
	tr.sendErrs["bad"] = boom
	errs := &errorSink{}
	sp := newGatedSpawner()
	s := newTestShipper(t, tr, Options{Spawner: sp, ErrorHandler: errs})

	for _, l := range []string{"good1", "bad", "good2"} {
		s.Ship(l)
	}
	sp.start()
	s.Stop()

	assert.DeepEqual(t, []string{"send:good1", "send:bad", "send:good2", "flush"}, tr.snapshot())
	reported := errs.all()
	assert.Assert(t, is.Len(reported, 1))
	var sendErr *SendError
	assert.Assert(t, errors.As(reported[0], &sendErr))
	assert.Equal(t, "bad", sendErr.Line)
	assert.Assert(t, errors.Is(reported[0], boom))
}

func Test_Shipper_FlushFailureIsReported(t *testing.T) {
	tr := newRecorder()
	tr.flushErr = errors.New("write: broken pipe")
	errs := &errorSink{}
	s := newTestShipper(t, tr, Options{ErrorHandler: errs})

	s.Ship("a")
	s.Stop()

	reported := errs.all()
	assert.Assert(t, is.Len(reported, 1))
	var flushErr *FlushError
	assert.Assert(t, errors.As(reported[0], &flushErr))
}

func Test_Shipper_CloseFailureIsReported(t *testing.T) {
	tr := newRecorder()
	tr.closeErr = errors.New("already closed")
	errs := &errorSink{}
	s := newTestShipper(t, tr, Options{ErrorHandler: errs})

	s.Stop()

	reported := errs.all()
	assert.Assert(t, is.Len(reported, 1))
	var closeErr *CloseError
	assert.Assert(t, errors.As(reported[0], &closeErr))
}

func Test_Shipper_TransportPanicIsRecovered(t *testing.T) {
	tr := newRecorder()
	tr.panicOn = "explode"
	errs := &errorSink{}
	sp := newGatedSpawner()
	s := newTestShipper(t, tr, Options{Spawner: sp, ErrorHandler: errs})

	s.Ship("explode")
	s.Ship("after")
	sp.start()
	s.Stop()

	assert.DeepEqual(t, []string{"send:explode", "send:after", "flush"}, tr.snapshot())
	reported := errs.all()
	assert.Assert(t, is.Len(reported, 1))
	assert.Check(t, is.ErrorContains(reported[0], "panic: transport exploded"))
}

func Test_Shipper_PanickingErrorHandlerIsIgnored(t *testing.T) {
	tr := newRecorder()
	tr.sendErrs["a"] = errors.New("fail")
	handler := ErrorHandlerFunc(func(error) { panic("handler exploded") })
	s := newTestShipper(t, tr, Options{ErrorHandler: handler})

	s.Ship("a")
	s.Ship("b")
	s.Stop()

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, 1, tr.closeCount())
}

func Test_Shipper_ConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 500
	tr := newRecorder()
	s := newTestShipper(t, tr, Options{})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s.Ship(fmt.Sprintf("%d:%d", p, i))
			}
		}(p)
	}
	wg.Wait()
	s.Stop()

	seen := map[string]int{}
	next := make([]int, producers)
	for _, ev := range tr.snapshot() {
		if ev == "flush" {
			continue
		}
		seen[ev]++
		var p, i int
		_, err := fmt.Sscanf(ev, "send:%d:%d", &p, &i)
		assert.NilError(t, err)
		assert.Equal(t, next[p], i, "producer %d delivered out of order", p)
		next[p]++
	}
	assert.Equal(t, producers*perProducer, len(seen))
	for line, n := range seen {
		assert.Equal(t, 1, n, "line %s delivered %d times", line, n)
	}
}

func Test_Shipper_IdleWorkerMakesNoCalls(t *testing.T) {
	tr := newRecorder()
	s := newTestShipper(t, tr, Options{PollTimeout: 5 * time.Millisecond})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateRunning, s.State())
	assert.Check(t, is.Len(tr.snapshot(), 0))

	s.Stop()
	assert.Check(t, is.Len(tr.snapshot(), 0))
	assert.Equal(t, StateStopped, s.State())
}

func Test_Shipper_Metrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	tr := newRecorder()
	tr.sendErrs["b"] = errors.New("fail")
	sp := newGatedSpawner()
	s := newTestShipper(t, tr, Options{QueueSize: 3, Spawner: sp, Registerer: reg, Name: "test"})

	for _, l := range []string{"a", "b", "c", "d"} {
		s.Ship(l)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(s.metrics.submitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.dropped))

	sp.start()
	s.Stop()

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.sent))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.sendErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.flushes))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.flushErrors))

	n, err := testutil.GatherAndCount(reg, "statsd_queue_length")
	assert.NilError(t, err)
	assert.Equal(t, 1, n)
}

func Test_Shipper_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	first := newTestShipper(t, newRecorder(), Options{Registerer: reg})
	defer first.Stop()

	_, err := New(newRecorder(), Options{Registerer: reg})
	assert.ErrorContains(t, err, "register metrics")
}

func Test_State_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "State(7)", State(7).String())
}
