// Package di provides dependency injection configuration for the ingest daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/folioapp/folio-ingest/internal/config"
	"github.com/folioapp/folio-ingest/internal/crosswalk"
	"github.com/folioapp/folio-ingest/internal/di/providers"
	"github.com/folioapp/folio-ingest/internal/logger"
	"github.com/folioapp/folio-ingest/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Import pipeline
	do.Provide(injector, providers.ProvideCrosswalk)
	do.Provide(injector, providers.ProvideTransport)
	do.Provide(injector, providers.ProvideImportService)

	// Workers
	do.Provide(injector, providers.ProvideWatcher)

	return injector
}

// Bootstrap initializes all services. This triggers lazy initialization of
// the full pipeline so startup failures surface immediately.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*crosswalk.Table](injector)
	_ = do.MustInvoke[*providers.TransportHandle](injector)
	_ = do.MustInvoke[*service.ImportService](injector)
	_ = do.MustInvoke[*providers.WatcherHandle](injector)

	return nil
}
