package shipper

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// compactAfter is how many consumed slots the queue tolerates at the front
// of its backing slice before moving the live items down.
const compactAfter = 1024

// queue is a bounded multi-producer, single-consumer FIFO of metric lines.
// Storage grows on demand, so a very large capacity costs nothing until it
// is used.
type queue struct {
	mu       sync.Mutex
	items    []string
	head     int
	capacity int
	closed   bool

	// ready holds at most one pending wake-up for the consumer.
	ready chan struct{}
}

func newQueue(capacity int) *queue {
	return &queue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// offer appends line unless the queue is full or closed. It never waits on
// the consumer.
func (q *queue) offer(line string) bool {
	q.mu.Lock()
	if q.closed || len(q.items)-q.head >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, line)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// poll removes and returns the oldest line without waiting.
func (q *queue) poll() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return "", false
	}
	line := q.items[q.head]
	q.items[q.head] = ""
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactAfter && q.head*2 >= len(q.items):
		old := len(q.items)
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:old])
		q.items = q.items[:n]
		q.head = 0
	}
	return line, true
}

// take returns the oldest line, waiting up to timeout for one to arrive.
// It returns early, possibly empty-handed, once quit is closed.
func (q *queue) take(clk clock.Clock, timeout time.Duration, quit <-chan struct{}) (string, bool) {
	if line, ok := q.poll(); ok {
		return line, true
	}

	timer := clk.Timer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			// The wake-up may be stale; only return once something is there.
			if line, ok := q.poll(); ok {
				return line, true
			}
		case <-timer.C:
			return q.poll()
		case <-quit:
			return q.poll()
		}
	}
}

// close rejects all further offers. Queued lines stay available to poll.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Len returns the number of queued lines.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *queue) empty() bool {
	return q.Len() == 0
}
