// Package store provides the badger-backed publication repository.
// It exposes the narrow get-by-identifier / get-or-create / update
// operations the import pipeline needs; callers never issue raw queries.
package store

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/errors"
)

// Sentinel errors, shared with the domain error taxonomy so errors.Is
// works across layers.
var (
	ErrNotFound      = errors.ErrNotFound
	ErrAlreadyExists = errors.ErrAlreadyExists
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Generic entities
	Journals      *Entity[domain.Journal]
	Articles      *Entity[domain.Article]
	Issues        *Entity[domain.Issue]
	Sections      *Entity[domain.Section]
	Authors       *Entity[domain.AuthorIdentity]
	FrozenAuthors *Entity[domain.FrozenAuthor]
}

// New creates a new Store instance with the given database path.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}
	store.initEntities()

	logger.Info("publication store opened", "path", path)

	return store, nil
}

// initEntities wires the generic entities and their secondary indexes.
// Index keys encode the uniqueness invariants: one article per
// (journal, DOI) and per (journal, source ID), one issue per
// (journal, volume, number), one section per (journal, name), one author
// identity per lowercased email.
func (s *Store) initEntities() {
	s.Journals = NewEntity[domain.Journal](s, "journal:").
		WithIndex("path", func(j *domain.Journal) []string {
			if j.Path == "" {
				return nil
			}
			return []string{j.Path}
		})

	s.Articles = NewEntity[domain.Article](s, "article:").
		WithIndex("doi", func(a *domain.Article) []string {
			if a.DOI == "" {
				return nil
			}
			return []string{a.JournalID + "/" + a.DOI}
		}).
		WithIndex("source", func(a *domain.Article) []string {
			if a.SourceID == "" {
				return nil
			}
			return []string{a.JournalID + "/" + a.SourceID}
		})

	s.Issues = NewEntity[domain.Issue](s, "issue:").
		WithIndex("key", func(i *domain.Issue) []string {
			return []string{i.Key()}
		})

	s.Sections = NewEntity[domain.Section](s, "section:").
		WithIndex("key", func(sec *domain.Section) []string {
			return []string{sec.Key()}
		})

	s.Authors = NewEntity[domain.AuthorIdentity](s, "author:").
		WithIndexTransform("email",
			func(a *domain.AuthorIdentity) []string {
				if a.Email == "" {
					return nil
				}
				return []string{lowercase(a.Email)}
			},
			lowercase,
		)

	// FrozenAuthors are unique per (article, byline slot) so re-importing a
	// batch cannot duplicate snapshots.
	s.FrozenAuthors = NewEntity[domain.FrozenAuthor](s, "frozen:").
		WithIndex("slot", func(f *domain.FrozenAuthor) []string {
			return []string{FrozenSlotKey(f)}
		})
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("closing publication store")
	return s.db.Close()
}

// DB exposes the underlying badger handle for maintenance tooling.
func (s *Store) DB() *badger.DB {
	return s.db
}
