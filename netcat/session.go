package netcat

import (
	"context"
	"time"

	ncerr "ctfnc/internal/errors"
	"ctfnc/internal/metrics"
	"ctfnc/internal/transport"
	"ctfnc/util"
)

// Session is an immutable description of one interactive session.
// Every With* method returns a modified copy, so a base Session can be
// shared and specialised freely.
//
//	out, err := netcat.Localhost(1337).
//		WithTimeout(500 * time.Millisecond).
//		WithResponder(solve).
//		Run(ctx)
type Session struct {
	host      string
	port      uint16
	timeout   time.Duration
	responder Responder
	hangup    bool

	dialer  transport.Dialer
	logger  *util.Logger
	metrics *metrics.Collector
}

// NewSession returns an empty Session.  Host, port and responder must be
// set before Run.
func NewSession() Session { return Session{} }

// Localhost returns a Session targeting "localhost" on port.
func Localhost(port uint16) Session {
	return NewSession().WithHost("localhost").WithPort(port)
}

// WithHost sets the target hostname or IP literal.
func (s Session) WithHost(host string) Session { s.host = host; return s }

// WithPort sets the target TCP port.
func (s Session) WithPort(port uint16) Session { s.port = port; return s }

// WithTimeout overrides the idle-read timeout.  Zero restores the
// default; a negative value makes Run fail with ErrTimeoutConfig.
func (s Session) WithTimeout(d time.Duration) Session { s.timeout = d; return s }

// WithResponder sets the callback that answers each drained burst.
func (s Session) WithResponder(r Responder) Session { s.responder = r; return s }

// WithStopOnHangup makes Run end the session once the peer has closed
// the connection, whatever the responder says.  The responder still sees
// the burst that arrived before the close.  Without it a responder that
// never stops keeps answering a dead connection.
func (s Session) WithStopOnHangup(on bool) Session { s.hangup = on; return s }

// WithDialer replaces the default TCP dialer, e.g. with an SSH jump or
// a retrying dialer.
func (s Session) WithDialer(d transport.Dialer) Session { s.dialer = d; return s }

// WithLogger sets the logger.  Received and answered text is logged at
// debug verbosity.
func (s Session) WithLogger(l *util.Logger) Session { s.logger = l; return s }

// WithMetrics attaches a collector for connection and traffic counters.
func (s Session) WithMetrics(m *metrics.Collector) Session { s.metrics = m; return s }

// Host returns the configured host, or "" if unset.
func (s Session) Host() string { return s.host }

// Port returns the configured port, or 0 if unset.
func (s Session) Port() uint16 { return s.port }

// Timeout returns the idle-read timeout Run will use.
func (s Session) Timeout() time.Duration {
	if s.timeout == 0 {
		return DefaultTimeout
	}
	return s.timeout
}

// Run validates the configuration, connects, and drives the session to
// completion.  It returns the text of the last burst handed to the
// responder followed by everything read after the responder stopped.
//
// A missing host, port or responder fails with ErrIncomplete before any
// network activity.  ctx bounds the dial only; once connected the
// session ends when the responder says so.
func (s Session) Run(ctx context.Context) (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}

	conn, err := Dial(ctx, s.host, s.port, s.Timeout(), Options{
		Dialer:  s.dialer,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return "", err
	}
	defer conn.Close()

	responder := s.responder
	if s.hangup {
		responder = stopOnHangup(conn, responder)
	}
	return Respond(conn, responder), nil
}

// stopOnHangup wraps r so it stops once conn has seen the peer close.  A
// final non-empty burst is still handed to r.
func stopOnHangup(conn *Conn, r Responder) Responder {
	return func(input string) (string, bool) {
		if conn.PeerClosed() && input == "" {
			return "", false
		}
		reply, ok := r(input)
		if ok && conn.PeerClosed() {
			conn.logger.Verbose("not answering %s: connection closed", conn.addr)
			return "", false
		}
		return reply, ok
	}
}

func (s Session) validate() error {
	switch {
	case s.host == "":
		return ncerr.Missing("host", "use WithHost or Localhost")
	case s.port == 0:
		return ncerr.Missing("port", "use WithPort or Localhost")
	case s.responder == nil:
		return ncerr.Missing("responder", "use WithResponder")
	}
	return nil
}

// Respond runs the read/decide/write loop on an open connection:
//
//  1. drain a burst
//  2. ask the responder; on stop, go to 4
//  3. write the reply line and go to 1
//  4. drain once more and return the last burst plus that final read
//
// Respond does not close conn.  It has no failure path; write errors are
// logged by the connection and the loop carries on.
func Respond(conn *Conn, responder Responder) string {
	var input string
	for {
		input = conn.DrainRead()
		conn.logger.Debug("Received:\n%s", input)

		reply, ok := responder(input)
		if !ok {
			break
		}
		conn.logger.Debug("Answered: %s", reply)
		conn.WriteLine(reply)
	}
	return input + conn.DrainRead()
}
