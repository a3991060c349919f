// Package transport provides the wire sinks a statsd client writes to.
//
// A Transport accepts fully formatted metric lines through Send and pushes
// anything it has buffered onto the wire through Flush. Transports are not
// safe for concurrent use: the shipper owns exactly one and calls it from a
// single goroutine.
//
// Implemented transports:
//   - udp     newline-joined lines packed into UDP datagrams (udp.go)
//   - uds     the same packing over a unixgram socket (uds.go)
//   - discard accepts and drops everything (discard.go)
//
// New(Config) selects the variant from Config.Kind. Both datagram transports
// share the packet buffer in datagram.go: a line that does not fit in the
// pending packet forces the packet out first, and Flush writes whatever is
// pending.
package transport
