package netcat

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctfnc/internal/metrics"
	"ctfnc/util"
)

// serve starts a single-connection TCP stub on loopback and runs handle
// on the accepted connection.
func serve(t *testing.T, handle func(c net.Conn)) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), uint16(addr.Port)
}

func dialStub(t *testing.T, host string, port uint16, timeout time.Duration, opts Options) *Conn {
	t.Helper()
	c, err := Dial(context.Background(), host, port, timeout, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// writeChunks sends each chunk separated by gap, then holds the
// connection open until the client goes away.
func writeChunks(gap time.Duration, chunks ...string) func(net.Conn) {
	return func(c net.Conn) {
		for i, chunk := range chunks {
			if i > 0 {
				time.Sleep(gap)
			}
			c.Write([]byte(chunk)) //nolint:errcheck
		}
		io.Copy(io.Discard, c) //nolint:errcheck
	}
}

func TestDrainRead_Chunking(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"single write", []string{"hello world"}, "hello world"},
		{"spread over writes", []string{"hel", "lo ", "wor", "ld"}, "hello world"},
		{"rune split across reads", []string{"caf\xc3", "\xa9!"}, "café!"},
		{"invalid utf-8 replaced", []string{"ok\xff"}, "ok�"},
		{"larger than one read", []string{strings.Repeat("a", 3*ReadBufSize), strings.Repeat("b", 10)},
			strings.Repeat("a", 3*ReadBufSize) + strings.Repeat("b", 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := serve(t, writeChunks(20*time.Millisecond, tt.chunks...))
			c := dialStub(t, host, port, 250*time.Millisecond, Options{})

			assert.Equal(t, tt.want, c.DrainRead())
		})
	}
}

func TestDrainRead_SilentPeerWaitsOneTimeout(t *testing.T) {
	host, port := serve(t, writeChunks(0))
	timeout := 150 * time.Millisecond
	c := dialStub(t, host, port, timeout, Options{})

	start := time.Now()
	got := c.DrainRead()
	elapsed := time.Since(start)

	assert.Empty(t, got)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 2*time.Second)
	assert.False(t, c.PeerClosed(), "silence is not a hang-up")
}

func TestDrainRead_StopsEarlyOnClose(t *testing.T) {
	host, port := serve(t, func(c net.Conn) {
		c.Write([]byte("hello")) //nolint:errcheck
		time.Sleep(50 * time.Millisecond)
	})
	c := dialStub(t, host, port, time.Second, Options{})

	start := time.Now()
	got := c.DrainRead()

	assert.Equal(t, "hello", got)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.True(t, c.PeerClosed())

	// Drained again after EOF: nothing, and no wait.
	start = time.Now()
	assert.Empty(t, c.DrainRead())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, c.PeerClosed())
}

func TestWriteLine_AppendsNewlineVerbatim(t *testing.T) {
	received := make(chan string, 1)
	host, port := serve(t, func(c net.Conn) {
		data, _ := io.ReadAll(c)
		received <- string(data)
	})

	m := metrics.New()
	c, err := Dial(context.Background(), host, port, 100*time.Millisecond, Options{Metrics: m})
	require.NoError(t, err)

	c.WriteLine("x")
	c.WriteLine("y\n")
	c.WriteLine("")
	require.NoError(t, c.Close())

	select {
	case got := <-received:
		assert.Equal(t, "x\ny\n\n\n", got)
	case <-time.After(2 * time.Second):
		t.Fatal("stub never saw the client close")
	}
	assert.Equal(t, int64(3), m.Replies())
	assert.Equal(t, int64(6), m.TotalBytesOut())
}

func TestWriteLine_FailureIsOnlyAWarning(t *testing.T) {
	client, server := net.Pipe()

	var logs bytes.Buffer
	logger := util.NewLogger(1)
	logger.SetOutput(&logs)
	m := metrics.New()

	// The deadline has to be applied while the pipe is still open.
	c, err := NewConn(client, 50*time.Millisecond, Options{Logger: logger, Metrics: m})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, server.Close())

	c.WriteLine("anyone there?")

	assert.Contains(t, logs.String(), "[WRN] write to pipe failed")
	assert.Equal(t, int64(1), m.ErrorCount())
	assert.Equal(t, int64(0), m.Replies())
	assert.Empty(t, c.DrainRead())
	assert.True(t, c.PeerClosed())
}

func TestDial_Unreachable(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	_, err = Dial(context.Background(), "127.0.0.1", port, time.Second, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.NotErrorIs(t, err, ErrTimeoutConfig)
}

func TestDial_BadTimeoutClosesConnection(t *testing.T) {
	closed := make(chan struct{})
	host, port := serve(t, func(c net.Conn) {
		io.Copy(io.Discard, c) //nolint:errcheck
		close(closed)
	})

	m := metrics.New()
	_, err := Dial(context.Background(), host, port, -time.Second, Options{Metrics: m})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeoutConfig)
	assert.Equal(t, int64(0), m.TotalConnections())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection left open after timeout error")
	}
}

func TestConn_SetTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	for _, bad := range []time.Duration{0, -time.Millisecond} {
		_, err := NewConn(client, bad, Options{})
		assert.ErrorIs(t, err, ErrTimeoutConfig, "timeout %v", bad)
	}

	c, err := NewConn(client, DefaultTimeout, Options{})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, DefaultTimeout, c.Timeout())

	require.NoError(t, c.SetTimeout(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, c.Timeout())

	assert.ErrorIs(t, c.SetTimeout(0), ErrTimeoutConfig)
	assert.Equal(t, 20*time.Millisecond, c.Timeout(), "rejected value must not stick")
}

func TestConn_CloseTwice(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	m := metrics.New()
	c, err := NewConn(client, time.Second, Options{Metrics: m})
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ActiveConnections())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, int64(0), m.ActiveConnections())
	assert.Equal(t, int64(1), m.TotalConnections())
}

func TestConn_MetricsCountInbound(t *testing.T) {
	host, port := serve(t, writeChunks(0, "0123456789"))
	m := metrics.New()
	c := dialStub(t, host, port, 100*time.Millisecond, Options{Metrics: m})

	c.DrainRead()
	c.DrainRead()

	assert.Equal(t, int64(2), m.Drains())
	assert.Equal(t, int64(10), m.TotalBytesIn())
}
