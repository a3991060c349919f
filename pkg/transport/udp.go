package transport

import (
	"fmt"
	"net"
)

// UDP is a datagram transport over a connected UDP socket.
type UDP struct {
	*datagramConn
}

// NewUDP dials addr (host:port). maxPacket <= 0 selects DefaultUDPPacketSize.
func NewUDP(addr string, maxPacket int) (*UDP, error) {
	if addr == "" {
		return nil, fmt.Errorf("transport: udp address is required")
	}
	if maxPacket <= 0 {
		maxPacket = DefaultUDPPacketSize
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial udp %s: %w", addr, err)
	}
	return &UDP{datagramConn: newDatagramConn(conn, maxPacket)}, nil
}
