// lineecho - a concurrent line-echo server with a bulk task join demo.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lineecho/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lineecho: %v\n", err)
		os.Exit(1)
	}
}
