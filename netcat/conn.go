package netcat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/text/encoding/unicode"

	ncerr "ctfnc/internal/errors"
	"ctfnc/internal/metrics"
	"ctfnc/internal/transport"
	"ctfnc/util"
)

// Options carries the optional collaborators of a Conn.  The zero value
// dials plain TCP, logs nothing below errors, and keeps no metrics.
type Options struct {
	Dialer  transport.Dialer
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Conn owns one established TCP connection and its idle-read timeout.
// It is not safe for concurrent use; a session drives it from a single
// goroutine.
type Conn struct {
	conn    net.Conn
	addr    string
	timeout time.Duration
	logger  *util.Logger
	metrics *metrics.Collector
	closed  bool
	hungUp  bool
}

// Dial connects to host:port and applies timeout as the idle-read
// timeout.  ctx bounds the dial only.  No retry happens here; wrap the
// dialer in a transport.RetryDialer for that.
//
// Failures carry their kind: ErrUnreachable when the dial fails,
// ErrTimeoutConfig when the timeout cannot be applied.
func Dial(ctx context.Context, host string, port uint16, timeout time.Duration, opts Options) (*Conn, error) {
	addr := util.FormatAddr(host, port)

	d := opts.Dialer
	if d == nil {
		d = &transport.TCPDialer{Timeout: DefaultDialTimeout}
	}

	raw, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Unreachable(addr, err)
	}

	c, err := NewConn(raw, timeout, opts)
	if err != nil {
		raw.Close()
		return nil, err
	}
	c.logger.Verbose("connected to %s (idle timeout %v)", raw.RemoteAddr(), timeout)
	return c, nil
}

// NewConn wraps an already established connection.  Dialer in opts is
// ignored.
func NewConn(raw net.Conn, timeout time.Duration, opts Options) (*Conn, error) {
	c := &Conn{
		conn:    raw,
		addr:    raw.RemoteAddr().String(),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if c.logger == nil {
		c.logger = util.NewLogger(0)
	}
	if err := c.SetTimeout(timeout); err != nil {
		return nil, err
	}
	c.metrics.ConnectionOpened()
	return c, nil
}

// SetTimeout changes the idle-read timeout.  Non-positive values and
// sockets that refuse a read deadline fail with ErrTimeoutConfig.
func (c *Conn) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return ncerr.TimeoutConfig(c.addr, fmt.Errorf("timeout must be positive, got %v", timeout))
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ncerr.TimeoutConfig(c.addr, err)
	}
	c.timeout = timeout
	return nil
}

// Timeout returns the current idle-read timeout.
func (c *Conn) Timeout() time.Duration { return c.timeout }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// DrainRead reads until the peer has been silent for the idle timeout
// or has closed the connection, and returns everything received as
// text.  Invalid UTF-8 is replaced with U+FFFD.  The burst is decoded as
// a whole, so a rune split across reads survives intact.
//
// DrainRead never fails: a timeout is the normal end of a burst, and
// any other read error simply ends it early.  It returns "" when nothing
// arrived.  A drain that ends for any reason other than the idle timeout
// marks the peer as gone; see PeerClosed.
func (c *Conn) DrainRead() string {
	var burst []byte
	buf := make([]byte, ReadBufSize)
	start := time.Now()

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			c.logger.Debug("read deadline on %s: %v", c.addr, err)
			c.hangUp()
			break
		}
		n, err := c.conn.Read(buf)
		burst = append(burst, buf[:n]...)
		if err != nil {
			if !idle(err) {
				if !errors.Is(err, io.EOF) {
					c.logger.Debug("read from %s: %v", c.addr, err)
				}
				c.hangUp()
			}
			break
		}
		if n == 0 {
			c.hangUp()
			break
		}
	}

	c.metrics.Drained(int64(len(burst)), time.Since(start))
	return decode(burst)
}

// PeerClosed reports whether a drain has seen the connection end: an
// orderly close, a reset, or a zero-byte read.  Once set it stays set.
func (c *Conn) PeerClosed() bool { return c.hungUp }

func (c *Conn) hangUp() {
	if !c.hungUp {
		c.hungUp = true
		c.logger.Verbose("%s closed the connection", c.addr)
	}
}

// WriteLine sends text followed by a single "\n".  The text is sent
// verbatim; a trailing newline already present is not collapsed.
//
// Writes are best-effort: a failure is logged as a warning and counted,
// but never returned, so it cannot abort a session.
func (c *Conn) WriteLine(text string) {
	data := []byte(text + "\n")
	n, err := c.conn.Write(data)
	if err != nil {
		c.logger.Warn("write to %s failed after %d/%d bytes: %v", c.addr, n, len(data), err)
		c.metrics.RecordError(fmt.Sprintf("write %s: %v", c.addr, err))
		return
	}
	c.metrics.ReplySent(int64(n))
}

// Close closes the underlying connection.  Calling it twice is harmless.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.metrics.ConnectionClosed()
	return c.conn.Close()
}

// idle reports whether err is the idle timeout that normally ends a
// burst.
func idle(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// decode never fails: the UTF-8 decoder substitutes U+FFFD for invalid
// sequences instead of returning an error.
func decode(b []byte) string {
	out, _ := unicode.UTF8.NewDecoder().Bytes(b)
	return string(out)
}
