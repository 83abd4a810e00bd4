// Package tunnel reaches targets that are only routable from an SSH jump
// host, using golang.org/x/crypto/ssh direct-tcpip channels.
//
// SSH channels do not implement deadlines, and the session core measures
// silence with read deadlines, so every forwarded stream is relayed
// through an in-memory pipe that does.
package tunnel

import (
	"io"
	"net"
)

// forwardedConn is the caller's end of a relay pipe whose far end is
// pumped to and from an SSH channel.  Deadlines act on the pipe;
// addresses and Close act on the channel too.
type forwardedConn struct {
	net.Conn
	channel net.Conn
}

// withDeadlines returns a net.Conn carrying channel's traffic that
// honours SetReadDeadline and SetWriteDeadline.
func withDeadlines(channel net.Conn) net.Conn {
	near, far := net.Pipe()

	go func() {
		io.Copy(far, channel) //nolint:errcheck
		far.Close()
	}()
	go func() {
		io.Copy(channel, far) //nolint:errcheck
		channel.Close()
	}()

	return &forwardedConn{Conn: near, channel: channel}
}

func (c *forwardedConn) LocalAddr() net.Addr  { return c.channel.LocalAddr() }
func (c *forwardedConn) RemoteAddr() net.Addr { return c.channel.RemoteAddr() }

func (c *forwardedConn) Close() error {
	err := c.Conn.Close()
	c.channel.Close()
	return err
}
