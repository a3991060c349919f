package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Sample is one parsed statsd line.
type Sample struct {
	Name  string
	Value string
	Type  string
	Rate  float64 // 1 when the line carried no sample rate
	Tags  []string
}

// Entry is the latest sample of a metric together with how often the metric
// was seen and when it was last updated.
type Entry struct {
	Sample    Sample
	Lines     uint64
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory metric store, keyed by metric name.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu    sync.RWMutex
	data  map[string]*Entry
	ttl   time.Duration
	clock clock.Clock
}

// New creates a Store with the given TTL driven by the wall clock.
func New(ttl time.Duration) *Store {
	return NewWithClock(ttl, clock.New())
}

// NewWithClock creates a Store whose timestamps and eviction ticks come
// from clk.
func NewWithClock(ttl time.Duration, clk clock.Clock) *Store {
	return &Store{
		data:  make(map[string]*Entry),
		ttl:   ttl,
		clock: clk,
	}
}

// TTL returns the configured retention.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put records smp as the latest sample of smp.Name.
func (s *Store) Put(smp Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[smp.Name]
	if !ok {
		e = &Entry{}
		s.data[smp.Name] = e
	}
	e.Sample = smp
	e.Lines++
	e.UpdatedAt = s.clock.Now()
}

// Get returns a copy of the live entry for name. Stale entries that have
// not been evicted yet are reported as missing.
func (s *Store) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[name]
	if !ok || !s.live(e, s.clock.Now()) {
		return Entry{}, false
	}
	return *e, true
}

// List returns copies of all live entries, sorted by metric name.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock.Now()
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		if s.live(e, now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sample.Name < out[j].Sample.Name })
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, e := range s.data {
		if !s.live(e, now) {
			delete(s.data, name)
			removed++
		}
	}
	return removed
}

func (s *Store) live(e *Entry, now time.Time) bool {
	return e.UpdatedAt.After(now.Add(-s.ttl))
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := s.clock.Ticker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale metrics", "count", n)
			}
		}
	}
}
