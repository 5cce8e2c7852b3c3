// Command modelctl inspects and moves models between the configured model
// storage and blob storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "modelctl:", err)
		stop()
		os.Exit(1)
	}
}
