package uptime

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync/atomic"
)

var (
	icyStatusPrefix  = []byte("ICY ")
	httpStatusPrefix = []byte("HTTP/1.0 ")
)

// icyConn rewrites a SHOUTcast v1 "ICY 200 OK" status line into an HTTP/1.0
// one so net/http can parse the response. Other traffic passes through.
type icyConn struct {
	net.Conn

	// sniffed and pending are only touched by the transport's reader goroutine.
	sniffed bool
	pending []byte
	icy     atomic.Bool
}

func (c *icyConn) Read(b []byte) (int, error) {
	if !c.sniffed {
		c.sniffed = true
		head := make([]byte, len(icyStatusPrefix))
		n, err := io.ReadFull(c.Conn, head)
		switch {
		case n == len(head) && bytes.Equal(head, icyStatusPrefix):
			c.icy.Store(true)
			c.pending = append([]byte(nil), httpStatusPrefix...)
		case n > 0:
			c.pending = head[:n]
		default:
			return 0, err
		}
	}

	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	return c.Conn.Read(b)
}

// answeredICY reports whether the peer used the ICY status line.
func (c *icyConn) answeredICY() bool {
	return c.icy.Load()
}

func icyDialer(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &icyConn{Conn: conn}, nil
	}
}
