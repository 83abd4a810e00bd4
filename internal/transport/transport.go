// Package transport decides how the stream to the target is opened:
// directly, through an SSH jump host, and with or without re-dial
// attempts.  It knows nothing about what is said over the stream.
package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Dialer opens outbound connections.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources such as an SSH connection.
	Close() error
}

// DialerFunc adapts a plain dial function to a Dialer with nothing to
// close.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// Close returns nil.
func (f DialerFunc) Close() error { return nil }

// requireTCP rejects anything but tcp, tcp4 and tcp6.
func requireTCP(network string) error {
	if !strings.HasPrefix(network, "tcp") {
		return fmt.Errorf("unsupported network %q: only tcp sessions are supported", network)
	}
	return nil
}
