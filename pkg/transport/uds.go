package transport

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// UDS is a datagram transport over a unixgram socket.
type UDS struct {
	*datagramConn
}

// NewUDS dials the unixgram socket at path. maxPacket <= 0 selects
// DefaultUDSPacketSize.
func NewUDS(path string, maxPacket int) (*UDS, error) {
	if path == "" {
		return nil, fmt.Errorf("transport: uds socket path is required")
	}
	if maxPacket <= 0 {
		maxPacket = DefaultUDSPacketSize
	}
	conn, err := net.Dial("unixgram", path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial unixgram %s: %w", path, err)
	}
	d := newDatagramConn(conn, maxPacket)
	d.classify = classifyUDSError
	return &UDS{datagramConn: d}, nil
}

// classifyUDSError tags errors caused by a full receive queue on the peer so
// callers can tell load shedding from a broken socket.
func classifyUDSError(err error) error {
	if isSocketBusy(err) {
		return fmt.Errorf("%w: %w", ErrSocketBusy, err)
	}
	return err
}

func isSocketBusy(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.ENOBUFS)
}
