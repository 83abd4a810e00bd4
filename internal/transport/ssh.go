package transport

import (
	"context"
	"net"

	"ctfnc/tunnel"
	"ctfnc/util"
)

// SSHDialer reaches targets through an SSH jump host.  The SSH
// connection is opened by the first Dial and shared by later ones.
type SSHDialer struct {
	jump *tunnel.Jump
}

// NewSSHDialer creates a dialer for the jump host described by cfg.
// Nothing is dialed until the first Dial.
func NewSSHDialer(cfg *tunnel.JumpConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{jump: tunnel.NewJump(cfg, logger)}
}

// Dial opens a forwarded connection to address.  Only "tcp" networks
// can cross a jump host.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := requireTCP(network); err != nil {
		return nil, err
	}
	return d.jump.Dial(ctx, "tcp", address)
}

// Close tears down the SSH connection.
func (d *SSHDialer) Close() error { return d.jump.Close() }
