// Command fincore serves and queries the provider catalog.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fincore/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
