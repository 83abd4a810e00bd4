package responder

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Interactive relays the session to a human: each burst is printed to
// out and the next line typed on in becomes the reply.  EOF on in or a
// cancelled context ends the session.
type Interactive struct {
	ctx   context.Context
	out   io.Writer
	lines <-chan string
}

// NewInteractive starts reading lines from in in the background.  The
// reader goroutine exits on EOF or when ctx is cancelled; a blocked read
// on in is left to the process exit.
func NewInteractive(ctx context.Context, in io.Reader, out io.Writer) *Interactive {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &Interactive{ctx: ctx, out: out, lines: lines}
}

// Respond satisfies netcat.Responder.
func (i *Interactive) Respond(input string) (string, bool) {
	fmt.Fprint(i.out, input)

	select {
	case line, ok := <-i.lines:
		return line, ok
	case <-i.ctx.Done():
		return "", false
	}
}
