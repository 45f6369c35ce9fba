// Package main runs the town server: the HTTP API, the push hub, the change
// trigger dispatcher and the nudge scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/di"
	"github.com/anjalik1505/town-functions-sub003/internal/di/providers"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "town: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	log := do.MustInvoke[*logger.Logger](injector)
	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)

	<-ctx.Done()
	log.Info("Shutting down server gracefully...")

	// Dependents stop first: the HTTP server and scheduler, then the
	// dispatcher drains its queue while the store is still open.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	if err := storeHandle.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	log.Info("Database closed")
	return nil
}
