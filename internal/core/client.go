// Package core is the orchestration layer.  It composes a dialer, a
// responder and a netcat.Session into the one operational mode ctfnc
// has, and provides a builder that assembles it from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  netcat  →  responder  →  core  →  cmd (CLI)
package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"ctfnc/internal/responder"
	"ctfnc/internal/transport"
	"ctfnc/netcat"
	"ctfnc/util"
)

// Client dials one target and drives a session against it, writing the
// transcript to Stdout.
type Client struct {
	Session   netcat.Session
	Dialer    transport.Dialer // closed when Run returns
	Responder netcat.Responder // nil → interactive on Stdin/Stdout
	Address   string
	Logger    *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (c *Client) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Client) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// Run connects and drives the session until the responder stops.
// Every burst is echoed to Stdout as it is handed to the responder, then
// whatever arrived after the final reply.
func (c *Client) Run(ctx context.Context) error {
	defer c.Dialer.Close()

	out := c.stdout()
	r := c.Responder
	if r == nil {
		r = responder.NewInteractive(ctx, c.stdin(), out).Respond
	} else {
		r = responder.Tee(out, r)
	}

	// The session returns the last burst again as the head of its
	// result; it has already been echoed.
	var last string
	track := func(input string) (string, bool) {
		last = input
		return r(input)
	}

	c.Logger.Verbose("starting session with %s (idle timeout %v)", c.Address, c.Session.Timeout())

	final, err := c.Session.WithResponder(track).Run(ctx)
	if err != nil {
		return fmt.Errorf("session with %s: %w", c.Address, err)
	}

	fmt.Fprint(out, strings.TrimPrefix(final, last))
	c.Logger.Verbose("session with %s finished", c.Address)
	return nil
}
