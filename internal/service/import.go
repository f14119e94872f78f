// Package service orchestrates import batches: journal registration,
// adapter selection for inbox files, failed-rows output and bounded
// cross-journal concurrency.
package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"

	"github.com/folioapp/folio-ingest/internal/adapter/jsondump"
	"github.com/folioapp/folio-ingest/internal/adapter/nativexml"
	"github.com/folioapp/folio-ingest/internal/adapter/tabular"
	"github.com/folioapp/folio-ingest/internal/adapter/usersxml"
	"github.com/folioapp/folio-ingest/internal/config"
	"github.com/folioapp/folio-ingest/internal/crosswalk"
	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/ingest"
	"github.com/folioapp/folio-ingest/internal/store"
	"github.com/folioapp/folio-ingest/internal/transport"
	"github.com/folioapp/folio-ingest/internal/validation"
	"github.com/folioapp/folio-ingest/internal/watcher"
)

// ImportOptions are the per-batch switches callers control.
type ImportOptions struct {
	UpdateMode      bool
	ReplaceKeywords bool
	ReplaceAuthors  bool
	StrictFields    bool
}

// BatchRequest is one batch to run against one journal.
type BatchRequest struct {
	JournalPath string        `validate:"required"`
	Source      ingest.Source `validate:"required"`
	Options     ImportOptions
}

// ImportService runs batches end to end. Batches for distinct journals may
// run concurrently; batches within one journal always run sequentially so
// resolution caches and get-or-create writes never race.
type ImportService struct {
	store     *store.Store
	client    *transport.Client
	table     *crosswalk.Table
	cfg       *config.Config
	validator *validation.Validator
	logger    *slog.Logger
}

// NewImportService creates the import service.
func NewImportService(st *store.Store, client *transport.Client, table *crosswalk.Table, cfg *config.Config, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		store:     st,
		client:    client,
		table:     table,
		cfg:       cfg,
		validator: validation.New(),
		logger:    logger,
	}
}

// RunBatch runs one batch. The journal is registered on first use. When the
// batch produced failures, a failed-rows file named after the batch ID is
// written for operator fix-up.
func (s *ImportService) RunBatch(ctx context.Context, req BatchRequest) (*ingest.Report, error) {
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	journal, err := s.journal(ctx, req.JournalPath)
	if err != nil {
		return nil, err
	}

	// Each batch gets its own resolver so concurrent journals never share
	// resolution caches.
	resolver := ingest.NewResolver(s.store, s.table, s.logger)
	coordinator := ingest.NewCoordinator(s.store, resolver, s.logger)

	report, err := coordinator.Run(ctx, req.Source, ingest.BatchOptions{
		Journal:         journal,
		UpdateMode:      req.Options.UpdateMode,
		ReplaceKeywords: req.Options.ReplaceKeywords,
		ReplaceAuthors:  req.Options.ReplaceAuthors,
		StrictFields:    req.Options.StrictFields,
		FallbackLocale:  s.cfg.Import.DefaultLocale,
	})
	if report != nil {
		if writeErr := s.writeFailedRows(report); writeErr != nil {
			s.logger.Error("failed to write failed-rows file", "batch_id", report.BatchID, "error", writeErr)
		}
	}
	return report, err
}

// RunBatches runs a set of batches with bounded concurrency across journals.
// Requests for the same journal keep their submission order. Reports are
// returned in request order; a nil slot means that batch aborted.
func (s *ImportService) RunBatches(ctx context.Context, reqs []BatchRequest) ([]*ingest.Report, error) {
	byJournal := make(map[string][]int)
	var order []string
	for i, req := range reqs {
		if _, seen := byJournal[req.JournalPath]; !seen {
			order = append(order, req.JournalPath)
		}
		byJournal[req.JournalPath] = append(byJournal[req.JournalPath], i)
	}

	reports := make([]*ingest.Report, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Import.MaxBatchConcurrency)

	for _, path := range order {
		indexes := byJournal[path]
		g.Go(func() error {
			for _, i := range indexes {
				report, err := s.RunBatch(ctx, reqs[i])
				reports[i] = report
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	return reports, g.Wait()
}

// RunFile imports one file, picking the adapter from its extension. XML
// files are sniffed by root element to tell the two dialects apart.
func (s *ImportService) RunFile(ctx context.Context, journalPath, path string) (*ingest.Report, error) {
	source, cleanup, opts, err := s.openSource(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return s.RunBatch(ctx, BatchRequest{
		JournalPath: journalPath,
		Source:      source,
		Options:     opts,
	})
}

// RunInbox consumes watcher events until the context is done. The inbox
// layout is one subdirectory per journal; the directory name is the journal
// path. A failed file is logged and skipped, never fatal for the inbox.
func (s *ImportService) RunInbox(ctx context.Context, w *watcher.Watcher) error {
	inbox := s.cfg.Import.InboxPath
	if inbox == "" {
		return errors.Validation("inbox path is not configured")
	}
	if err := w.Watch(inbox); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-w.Errors():
				s.logger.Error("inbox watcher error", "error", err)
			case event := <-w.Events():
				s.handleInboxFile(ctx, inbox, event.Path)
			}
		}
	})
	return g.Wait()
}

func (s *ImportService) handleInboxFile(ctx context.Context, inbox, path string) {
	dir := filepath.Dir(path)
	if filepath.Clean(dir) == filepath.Clean(inbox) {
		s.logger.Warn("inbox file is not inside a journal directory, skipping", "path", path)
		return
	}
	journalPath := filepath.Base(dir)

	report, err := s.RunFile(ctx, journalPath, path)
	if err != nil {
		s.logger.Error("inbox import failed", "path", path, "journal", journalPath, "error", err)
		return
	}
	committed, failed := report.Counts()
	s.logger.Info("inbox import finished",
		"path", path, "journal", journalPath,
		"batch_id", report.BatchID, "committed", committed, "failed", failed)
}

// openSource builds the adapter for a file. Tabular inbox files run strict:
// a bad cell fails its row into the failed-rows file instead of committing a
// record with the field zeroed.
func (s *ImportService) openSource(path string) (ingest.Source, func(), ImportOptions, error) {
	noop := func() {}
	var opts ImportOptions

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path) //#nosec G304 -- inbox file path comes from the watcher
		if err != nil {
			return nil, noop, opts, errors.Wrapf(err, errors.CodeBatchValidation, "opening %s", path)
		}
		opts.StrictFields = true
		return tabular.New(f, s.client, s.logger), func() { _ = f.Close() }, opts, nil

	case ".ndjson", ".jsonl":
		f, err := os.Open(path) //#nosec G304 -- inbox file path comes from the watcher
		if err != nil {
			return nil, noop, opts, errors.Wrapf(err, errors.CodeBatchValidation, "opening %s", path)
		}
		return jsondump.New(f, s.logger), func() { _ = f.Close() }, opts, nil

	case ".xml":
		data, err := os.ReadFile(path) //#nosec G304 -- inbox file path comes from the watcher
		if err != nil {
			return nil, noop, opts, errors.Wrapf(err, errors.CodeBatchValidation, "reading %s", path)
		}
		if rootElement(data) == "users" {
			return usersxml.New(bytes.NewReader(data), s.logger), noop, opts, nil
		}
		return nativexml.New(bytes.NewReader(data), s.logger), noop, opts, nil

	default:
		return nil, noop, opts, errors.Validationf("unsupported import file type %q", filepath.Ext(path))
	}
}

// rootElement returns the local name of the document's first element, or ""
// when the document has none.
func rootElement(data []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := decoder.Token()
		if err != nil {
			return ""
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local
		}
	}
}

// journal fetches the batch's journal scope, registering it on first use.
func (s *ImportService) journal(ctx context.Context, path string) (*domain.Journal, error) {
	journal, err := s.store.GetJournalByPath(ctx, path)
	if err == nil {
		return journal, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	journal = &domain.Journal{
		Path:          path,
		Title:         path,
		DefaultLocale: s.cfg.Import.DefaultLocale,
	}
	if err := s.store.CreateJournal(ctx, journal); err != nil {
		return nil, err
	}
	s.logger.Info("registered journal", "path", path, "id", journal.ID)
	return journal, nil
}

// writeFailedRows writes the report's correction file, if any.
func (s *ImportService) writeFailedRows(report *ingest.Report) error {
	data, err := report.FailedRowsCSV()
	if err != nil || data == nil {
		return err
	}

	dir := s.cfg.Import.FailedRowsPath
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	out := filepath.Join(dir, report.BatchID+".csv")
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return err
	}
	s.logger.Info("wrote failed-rows file", "batch_id", report.BatchID, "path", out, "rows", len(report.Failed))
	return nil
}
