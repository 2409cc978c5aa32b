package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eniac111/suitable/internal/cli"
	"github.com/eniac111/suitable/internal/logging"
)

// main is the entry point for the suitable CLI binary.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logging.NewLogger(os.Stderr, logging.LevelInfo).Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
