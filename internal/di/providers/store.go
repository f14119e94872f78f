package providers

import (
	"github.com/samber/do/v2"

	"github.com/folioapp/folio-ingest/internal/config"
	"github.com/folioapp/folio-ingest/internal/logger"
	"github.com/folioapp/folio-ingest/internal/store"
)

// StoreHandle wraps the publication store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the publication store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := store.New(cfg.Store.DataPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Publication store initialized", "path", cfg.Store.DataPath)

	return &StoreHandle{Store: st}, nil
}
