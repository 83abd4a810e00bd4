package transport

import (
	"context"
	"net"
	"time"
)

// keepAlive is the TCP keep-alive period for direct connections.  A
// session can sit idle at a prompt far longer than any NAT timeout.
const keepAlive = 30 * time.Second

// TCPDialer connects straight to the target.
type TCPDialer struct {
	// Timeout bounds the connect; zero leaves it to the OS and ctx.
	Timeout time.Duration

	// LocalPort pins the source port; zero picks an ephemeral one.
	LocalPort int
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := requireTCP(network); err != nil {
		return nil, err
	}

	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: keepAlive}
	if d.LocalPort > 0 {
		nd.LocalAddr = &net.TCPAddr{Port: d.LocalPort}
	}
	return nd.DialContext(ctx, network, address)
}

// Close does nothing; a TCPDialer holds no resources.
func (d *TCPDialer) Close() error { return nil }
