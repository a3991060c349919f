package transport

import (
	"fmt"
	"net"
)

// datagramConn packs newline-separated lines into datagrams of at most
// maxPacket bytes and writes them to conn.
type datagramConn struct {
	conn      net.Conn
	buf       []byte
	maxPacket int

	// classify lets a variant annotate write errors (see uds.go).
	classify func(error) error
}

func newDatagramConn(conn net.Conn, maxPacket int) *datagramConn {
	return &datagramConn{
		conn:      conn,
		buf:       make([]byte, 0, maxPacket),
		maxPacket: maxPacket,
	}
}

func (d *datagramConn) Send(line string) error {
	need := len(line)
	if len(d.buf) > 0 {
		need++ // separator
	}
	if len(d.buf)+need > d.maxPacket && len(d.buf) > 0 {
		if err := d.write(); err != nil {
			return err
		}
	}
	if len(d.buf) > 0 {
		d.buf = append(d.buf, '\n')
	}
	d.buf = append(d.buf, line...)

	// A single line larger than a packet goes out on its own.
	if len(d.buf) >= d.maxPacket {
		return d.write()
	}
	return nil
}

func (d *datagramConn) Flush() error {
	if len(d.buf) == 0 {
		return nil
	}
	return d.write()
}

func (d *datagramConn) Close() error {
	return d.conn.Close()
}

// write sends the pending packet. The buffer is reset even on failure: a
// datagram that could not be written is lost, not retried.
func (d *datagramConn) write() error {
	n := len(d.buf)
	_, err := d.conn.Write(d.buf)
	d.buf = d.buf[:0]
	if err != nil {
		if d.classify != nil {
			err = d.classify(err)
		}
		return fmt.Errorf("transport: write %d bytes to %s: %w", n, d.conn.RemoteAddr(), err)
	}
	return nil
}
