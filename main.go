// ctfnc - an interactive TCP client for services that never say when
// they are done talking.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ctfnc/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ctfnc: %v\n", err)
		os.Exit(1)
	}
}
