package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/obsidianstack/emitter/server/internal/api"
	"github.com/obsidianstack/emitter/server/internal/store"
)

// Connection timing. Pings go out well inside the idle window so a healthy
// peer always answers before its read deadline passes.
const (
	frameWriteDeadline = 10 * time.Second
	idleWindow         = time.Minute
	pingEvery          = 45 * time.Second

	// backlog is how many snapshots may wait for a subscriber before it is
	// considered stuck and evicted.
	backlog = 16

	// inboundLimit caps control frames; subscribers never send data.
	inboundLimit = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients on every tick.
type Message struct {
	Event   string               `json:"event"`
	At      string               `json:"at"` // RFC3339
	Metrics []api.MetricResponse `json:"metrics"`
}

// Hub streams the live metric set to WebSocket clients every interval.
// Each client may narrow its stream with ?prefix= and ?type= on connect.
type Hub struct {
	store    *store.Store
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		clock:    clock.New(),
		logger:   slog.Default(),
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run pushes a snapshot to every subscriber each interval until ctx ends,
// then disconnects them all.
func (h *Hub) Run(ctx context.Context) {
	tick := h.clock.Ticker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-tick.C:
			for _, s := range h.snapshot() {
				h.deliver(s)
			}
		}
	}
}

// ServeHTTP upgrades the request, queues an initial snapshot and serves the
// subscriber until either side hangs up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written a 400.
		return
	}

	q := r.URL.Query()
	s := newSubscriber(conn, q.Get("prefix"), q.Get("type"))

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("ws: subscriber joined", "remote", r.RemoteAddr, "prefix", s.prefix, "type", s.typ)

	defer func() {
		h.drop(s)
		h.logger.Debug("ws: subscriber left", "remote", r.RemoteAddr)
	}()

	h.deliver(s)
	go s.stream()
	s.drain()
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) snapshot() []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		out = append(out, s)
	}
	return out
}

// deliver renders the store through s's filters and queues it. A subscriber
// whose backlog is full is disconnected.
func (h *Hub) deliver(s *subscriber) {
	payload, err := json.Marshal(Message{
		Event:   "metrics",
		At:      h.clock.Now().UTC().Format(time.RFC3339),
		Metrics: api.BuildMetrics(h.store, s.prefix, s.typ),
	})
	if err != nil {
		h.logger.Warn("ws: encode snapshot", "err", err)
		return
	}
	if !s.offer(payload) {
		h.logger.Warn("ws: evicting stuck subscriber", "prefix", s.prefix, "type", s.typ)
		h.drop(s)
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.hangUp()
}

func (h *Hub) shutdown() {
	for _, s := range h.snapshot() {
		h.drop(s)
	}
}

// subscriber is one WebSocket connection. stream owns all writes and drain
// owns all reads; hangUp may be called from anywhere, any number of times.
type subscriber struct {
	conn   *websocket.Conn
	prefix string
	typ    string

	outbox chan []byte
	gone   chan struct{}
	once   sync.Once
}

func newSubscriber(conn *websocket.Conn, prefix, typ string) *subscriber {
	return &subscriber{
		conn:   conn,
		prefix: prefix,
		typ:    typ,
		outbox: make(chan []byte, backlog),
		gone:   make(chan struct{}),
	}
}

// offer queues payload without blocking and reports whether it fit. A
// subscriber that has hung up accepts everything and sends nothing.
func (s *subscriber) offer(payload []byte) bool {
	select {
	case <-s.gone:
		return true
	default:
	}
	select {
	case s.outbox <- payload:
		return true
	default:
		return false
	}
}

func (s *subscriber) hangUp() {
	s.once.Do(func() { close(s.gone) })
}

// stream writes queued snapshots and keepalive pings until the subscriber
// hangs up or a write fails. It closes the connection on the way out, which
// also ends drain.
func (s *subscriber) stream() {
	keepalive := time.NewTicker(pingEvery)
	defer keepalive.Stop()
	defer s.conn.Close()

	for {
		var err error
		select {
		case <-s.gone:
			s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case payload := <-s.outbox:
			err = s.write(websocket.TextMessage, payload)
		case <-keepalive.C:
			err = s.write(websocket.PingMessage, nil)
		}
		if err != nil {
			s.hangUp()
			return
		}
	}
}

func (s *subscriber) write(kind int, data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(frameWriteDeadline)); err != nil {
		return err
	}
	return s.conn.WriteMessage(kind, data)
}

// drain reads until the connection fails, which is how a disconnect is
// noticed. Pongs push the idle deadline forward.
func (s *subscriber) drain() {
	defer s.hangUp()

	s.conn.SetReadLimit(inboundLimit)
	extend := func(string) error { return s.conn.SetReadDeadline(time.Now().Add(idleWindow)) }
	if err := extend(""); err != nil {
		return
	}
	s.conn.SetPongHandler(extend)

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
