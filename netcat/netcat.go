// Package netcat drives interactive sessions against line/byte-oriented
// TCP services that never say when they are done talking.
//
// The end of a server burst is detected by silence: [Conn.DrainRead]
// keeps reading until the peer has been quiet for the idle timeout (or
// closes the connection).  [Respond] builds the session loop on top of
// that: drain, hand the text to a [Responder], write its reply, repeat
// until the responder says stop, then drain one last time so nothing
// the peer sent after the final reply is lost.
//
// The idle timeout is the one tuning knob.  A slow server and a server
// that has finished look the same; a longer timeout trades latency for
// completeness.
package netcat

import (
	"time"

	ncerr "ctfnc/internal/errors"
)

const (
	// ReadBufSize is the size of each individual socket read.
	ReadBufSize = 4096

	// DefaultTimeout is the idle-read timeout used when none is set.
	DefaultTimeout = 1000 * time.Millisecond

	// DefaultDialTimeout bounds the TCP handshake when no dialer is given.
	DefaultDialTimeout = 10 * time.Second
)

// Errors surfaced while establishing a session.  Nothing inside the
// running loop is ever reported as an error.
var (
	ErrUnreachable   = ncerr.ErrUnreachable
	ErrTimeoutConfig = ncerr.ErrTimeoutConfig
	ErrIncomplete    = ncerr.ErrIncomplete
)

// Responder decides what to do with each drained burst of text.
// Returning ok == true sends reply (plus a newline) and keeps the
// session going; ok == false ends it.
//
// A responder that never returns false keeps the session alive for as
// long as the peer keeps the connection open.
type Responder func(input string) (reply string, ok bool)
