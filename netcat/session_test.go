package netcat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "ctfnc/internal/errors"
	"ctfnc/internal/metrics"
	"ctfnc/util"
)

// countingDialer records how often it is asked to dial and always fails.
type countingDialer struct{ calls int }

func (d *countingDialer) Dial(_ context.Context, _, _ string) (net.Conn, error) {
	d.calls++
	return nil, fmt.Errorf("dial not expected")
}

func (d *countingDialer) Close() error { return nil }

func stop(string) (string, bool) { return "", false }

func TestSession_BuilderReturnsCopies(t *testing.T) {
	base := Localhost(1337)
	other := base.WithPort(31337).WithTimeout(250 * time.Millisecond)

	assert.Equal(t, "localhost", base.Host())
	assert.Equal(t, uint16(1337), base.Port())
	assert.Equal(t, DefaultTimeout, base.Timeout())

	assert.Equal(t, uint16(31337), other.Port())
	assert.Equal(t, 250*time.Millisecond, other.Timeout())

	assert.Equal(t, DefaultTimeout, other.WithTimeout(0).Timeout())
}

func TestSession_IncompleteFailsBeforeDial(t *testing.T) {
	tests := []struct {
		name  string
		s     Session
		field string
	}{
		{"no host", NewSession().WithPort(1).WithResponder(stop), "host"},
		{"no port", NewSession().WithHost("127.0.0.1").WithResponder(stop), "port"},
		{"no responder", Localhost(1), "responder"},
		{"nothing", NewSession(), "host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &countingDialer{}
			_, err := tt.s.WithDialer(d).Run(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIncomplete)
			assert.Zero(t, d.calls, "no network activity expected")

			var ce *ncerr.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestSession_Unreachable(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	_, err = NewSession().WithHost("127.0.0.1").WithPort(port).WithResponder(stop).Run(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestSession_NegativeTimeout(t *testing.T) {
	host, port := serve(t, writeChunks(0))

	_, err := NewSession().
		WithHost(host).
		WithPort(port).
		WithTimeout(-time.Second).
		WithResponder(stop).
		Run(context.Background())
	assert.ErrorIs(t, err, ErrTimeoutConfig)
}

// A responder that stops at once must cause one drain, no writes, and a
// final drain whose text is appended to the first.
func TestSession_ImmediateStop(t *testing.T) {
	received := make(chan string, 1)
	host, port := serve(t, func(c net.Conn) {
		c.Write([]byte("banner\n")) //nolint:errcheck
		time.Sleep(450 * time.Millisecond)
		c.Write([]byte("late\n")) //nolint:errcheck
		c.(*net.TCPConn).CloseWrite()
		rest, _ := io.ReadAll(c)
		received <- string(rest)
	})

	var seen []string
	m := metrics.New()
	out, err := NewSession().
		WithHost(host).
		WithPort(port).
		WithTimeout(300 * time.Millisecond).
		WithMetrics(m).
		WithResponder(func(in string) (string, bool) {
			seen = append(seen, in)
			return "", false
		}).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "banner\nlate\n", out)
	assert.Equal(t, []string{"banner\n"}, seen)
	assert.Equal(t, int64(2), m.Drains())
	assert.Zero(t, m.Replies())
	assert.Zero(t, m.ActiveConnections(), "Run must close the connection")
	assert.Empty(t, <-received)
}

// N acknowledgements then stop: N writes, N+2 drains, and the output is
// the last prompt plus the (empty) final read.
func TestSession_AcknowledgesNTimes(t *testing.T) {
	const rounds = 3

	lines := make(chan []string, 1)
	host, port := serve(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		var got []string
		fmt.Fprintf(c, "prompt 0\n")
		for i := 1; i <= rounds; i++ {
			line, err := r.ReadString('\n')
			if err != nil {
				break
			}
			got = append(got, line)
			fmt.Fprintf(c, "prompt %d\n", i)
		}
		rest, _ := io.ReadAll(r)
		if len(rest) > 0 {
			got = append(got, string(rest))
		}
		lines <- got
	})

	var seen []string
	m := metrics.New()
	out, err := NewSession().
		WithHost(host).
		WithPort(port).
		WithTimeout(100 * time.Millisecond).
		WithMetrics(m).
		WithResponder(func(in string) (string, bool) {
			seen = append(seen, in)
			if len(seen) > rounds {
				return "", false
			}
			return "ack", true
		}).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "prompt 3\n", out)
	assert.Equal(t, []string{"prompt 0\n", "prompt 1\n", "prompt 2\n", "prompt 3\n"}, seen)
	assert.Equal(t, int64(rounds), m.Replies())
	assert.Equal(t, int64(rounds+2), m.Drains())

	select {
	case got := <-lines:
		assert.Equal(t, []string{"ack\n", "ack\n", "ack\n"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("stub did not finish")
	}
}

func TestSession_LocalhostDebugLog(t *testing.T) {
	_, port := serve(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		c.Write([]byte("2+2?\n"))    //nolint:errcheck
		r.ReadString('\n')           //nolint:errcheck
		c.Write([]byte("correct\n")) //nolint:errcheck
		io.Copy(io.Discard, r)       //nolint:errcheck
	})

	var logs bytes.Buffer
	logger := util.NewLogger(3)
	logger.SetOutput(&logs)
	logger.SetTimestamps(false)

	answered := false
	out, err := Localhost(port).
		WithTimeout(150 * time.Millisecond).
		WithLogger(logger).
		WithResponder(func(in string) (string, bool) {
			if answered {
				return "", false
			}
			answered = true
			return "4", true
		}).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "correct\n", out)
	assert.Contains(t, logs.String(), "[DBG] Received:\n2+2?\n")
	assert.Contains(t, logs.String(), "[DBG] Answered: 4")
	assert.Contains(t, logs.String(), "[VRB] connected to")
}

// A peer that hangs up must end a responder that would otherwise answer
// forever.
func TestSession_StopOnHangup(t *testing.T) {
	host, port := serve(t, func(c net.Conn) {
		c.Write([]byte("no flag here\n")) //nolint:errcheck
	})

	var seen []string
	m := metrics.New()
	done := make(chan string, 1)
	go func() {
		out, err := NewSession().
			WithHost(host).
			WithPort(port).
			WithTimeout(500 * time.Millisecond).
			WithMetrics(m).
			WithStopOnHangup(true).
			WithResponder(func(in string) (string, bool) {
				seen = append(seen, in)
				return "more", true
			}).
			Run(context.Background())
		assert.NoError(t, err)
		done <- out
	}()

	select {
	case out := <-done:
		assert.Equal(t, "no flag here\n", out)
		assert.Equal(t, []string{"no flag here\n"}, seen)
		assert.Zero(t, m.Replies())
		assert.Equal(t, int64(2), m.Drains())
	case <-time.After(2 * time.Second):
		t.Fatalf("session kept answering a closed connection: %d drains", m.Drains())
	}
}
