package receiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"

	"github.com/obsidianstack/emitter/server/internal/store"
)

// Stats counts what the receiver has processed since it was created.
type Stats struct {
	Datagrams uint64 `json:"datagrams"`
	Lines     uint64 `json:"lines"`
	Malformed uint64 `json:"malformed"`
}

// Receiver reads statsd datagrams and records each parsed line in the store.
// One Receiver may serve several connections concurrently.
type Receiver struct {
	store      *store.Store
	readBuffer int

	datagrams atomic.Uint64
	lines     atomic.Uint64
	malformed atomic.Uint64
}

// New creates a Receiver that writes accepted lines to st. Datagrams longer
// than readBuffer bytes are truncated by the kernel.
func New(st *store.Store, readBuffer int) *Receiver {
	return &Receiver{store: st, readBuffer: readBuffer}
}

// Stats returns the receiver's counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Datagrams: r.datagrams.Load(),
		Lines:     r.lines.Load(),
		Malformed: r.malformed.Load(),
	}
}

// Handle processes one datagram. Lines are separated by '\n'; empty lines
// are skipped.
func (r *Receiver) Handle(datagram []byte) {
	r.datagrams.Add(1)
	for _, raw := range bytes.Split(datagram, []byte{'\n'}) {
		line := string(bytes.TrimRight(raw, "\r"))
		if line == "" {
			continue
		}
		smp, err := Parse(line)
		if err != nil {
			r.malformed.Add(1)
			slog.Debug("receiver: dropped line", "err", err)
			continue
		}
		r.lines.Add(1)
		r.store.Put(smp)
	}
}

// Serve reads datagrams from conn until ctx is cancelled or conn fails.
// conn is closed when Serve returns. A cancelled context is not an error.
func (r *Receiver) Serve(ctx context.Context, conn net.PacketConn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	buf := make([]byte, r.readBuffer)
	for {
		n, _, err := conn.ReadFrom(buf)
		if n > 0 {
			r.Handle(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receiver: read %s: %w", conn.LocalAddr(), err)
		}
	}
}

// ListenUDP opens the UDP socket for addr.
func ListenUDP(addr string) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("receiver: listen udp %s: %w", addr, err)
	}
	return conn, nil
}

// ListenUnixgram opens a unixgram socket at path, replacing a stale socket
// file left behind by a previous run.
func ListenUnixgram(path string) (net.PacketConn, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("receiver: remove stale socket %s: %w", path, err)
	}
	conn, err := net.ListenPacket("unixgram", path)
	if err != nil {
		return nil, fmt.Errorf("receiver: listen unixgram %s: %w", path, err)
	}
	return conn, nil
}
