package transport

import (
	"errors"
	"fmt"
	"io"
)

// Kind names a transport variant in configuration.
type Kind string

const (
	KindUDP     Kind = "udp"
	KindUDS     Kind = "uds"
	KindDiscard Kind = "discard"
)

// Default packet sizes. 1432 keeps a UDP datagram inside a typical 1500 byte
// MTU; unix sockets have no MTU so a larger packet is used.
const (
	DefaultUDPPacketSize = 1432
	DefaultUDSPacketSize = 8192
)

// ErrSocketBusy marks a send that failed because the socket buffer was full.
var ErrSocketBusy = errors.New("transport: socket buffer full")

// Transport delivers formatted metric lines. Implementations need not be safe
// for concurrent use.
type Transport interface {
	// Send queues line for delivery. It may write to the wire immediately.
	Send(line string) error

	// Flush writes any buffered lines to the wire.
	Flush() error

	io.Closer
}

// Config selects and parameterises a Transport.
type Config struct {
	// Kind is one of: udp | uds | discard.
	Kind Kind `yaml:"kind"`

	// Address is host:port for udp and the socket path for uds.
	Address string `yaml:"address"`

	// MaxPacketSize bounds the bytes written per datagram. Zero selects the
	// per-kind default.
	MaxPacketSize int `yaml:"max_packet_size"`
}

// New builds the Transport described by cfg. The remote address is resolved
// once, here; a failure is returned to the caller constructing the client.
func New(cfg Config) (Transport, error) {
	switch cfg.Kind {
	case KindUDP, "":
		return NewUDP(cfg.Address, cfg.MaxPacketSize)
	case KindUDS:
		return NewUDS(cfg.Address, cfg.MaxPacketSize)
	case KindDiscard:
		return Discard(), nil
	default:
		return nil, fmt.Errorf("transport: unsupported kind %q", cfg.Kind)
	}
}
