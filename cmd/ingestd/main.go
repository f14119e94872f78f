// Package main provides the entry point for the ingest daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/folioapp/folio-ingest/internal/di"
	"github.com/folioapp/folio-ingest/internal/di/providers"
	"github.com/folioapp/folio-ingest/internal/logger"
	"github.com/folioapp/folio-ingest/internal/service"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap daemon: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Cooperative shutdown: SIGINT/SIGTERM cancels the context, which
	// drains the inbox loop at a record boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcherHandle := do.MustInvoke[*providers.WatcherHandle](injector)
	if watcherHandle.Watcher != nil {
		svc := do.MustInvoke[*service.ImportService](injector)
		go func() {
			if err := svc.RunInbox(ctx, watcherHandle.Watcher); err != nil {
				log.Error("Inbox watcher stopped", "error", err)
			}
			stop()
		}()
	} else {
		log.Info("No inbox configured - running until shutdown signal")
	}

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// The DI container shuts down Shutdownable handles in reverse order:
	// watcher first, then transport, then the store.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Goodbye")
}
