package providers

import (
	"github.com/samber/do/v2"

	"github.com/folioapp/folio-ingest/internal/config"
	"github.com/folioapp/folio-ingest/internal/crosswalk"
	"github.com/folioapp/folio-ingest/internal/logger"
	"github.com/folioapp/folio-ingest/internal/service"
	"github.com/folioapp/folio-ingest/internal/transport"
	"github.com/folioapp/folio-ingest/internal/watcher"
)

// ProvideCrosswalk provides the section/stage crosswalk table. An empty
// configured path yields an empty table; resolution falls back to name
// matching.
func ProvideCrosswalk(i do.Injector) (*crosswalk.Table, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	table, err := crosswalk.Load(cfg.Crosswalk.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Crosswalk.Path != "" {
		log.Info("Crosswalk table loaded", "path", cfg.Crosswalk.Path)
	}
	return table, nil
}

// TransportHandle wraps the remote fetch client with shutdown capability.
type TransportHandle struct {
	*transport.Client
}

// Shutdown implements do.Shutdownable.
func (h *TransportHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideTransport provides the rate-limited remote fetch client.
func ProvideTransport(i do.Injector) (*TransportHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := transport.New(transport.Config{
		Timeout: cfg.Fetch.Timeout,
		RPS:     cfg.Fetch.RPS,
		Burst:   cfg.Fetch.Burst,
	}, log.Logger)

	return &TransportHandle{Client: client}, nil
}

// ProvideImportService provides the batch import service.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	table := do.MustInvoke[*crosswalk.Table](i)
	transportHandle := do.MustInvoke[*TransportHandle](i)

	return service.NewImportService(storeHandle.Store, transportHandle.Client, table, cfg, log.Logger), nil
}

// WatcherHandle wraps the inbox watcher with shutdown capability.
type WatcherHandle struct {
	*watcher.Watcher
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	return h.Stop()
}

// ProvideWatcher provides the inbox watcher. A nil inner watcher means the
// inbox is not configured and on-demand batches are the only entry point.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Import.InboxPath == "" {
		log.Info("Inbox watcher disabled - no inbox path configured")
		return &WatcherHandle{}, nil
	}

	w, err := watcher.New(log.Logger, watcher.Options{})
	if err != nil {
		return nil, err
	}
	return &WatcherHandle{Watcher: w}, nil
}
