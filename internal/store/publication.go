package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/id"
)

// Typed lookup and get-or-create operations over the generic entities.
// These are the only operations the import pipeline calls.

func lowercase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FrozenSlotKey identifies a frozen author's byline slot within an article.
// Individual authors occupy their email slot; corporate authors occupy a
// sequence-numbered slot, so re-imports update in place instead of
// duplicating snapshots.
func FrozenSlotKey(f *domain.FrozenAuthor) string {
	if f.IsCorporate || f.Email == "" {
		return fmt.Sprintf("%s/corp/%d", f.ArticleID, f.Sequence)
	}
	return f.ArticleID + "/" + lowercase(f.Email)
}

// GetArticleByDOI finds the journal's article carrying the DOI.
func (s *Store) GetArticleByDOI(ctx context.Context, journalID, doi string) (*domain.Article, error) {
	return s.Articles.GetByIndex(ctx, "doi", journalID+"/"+doi)
}

// GetArticleBySourceID finds the journal's article carrying the source-native ID.
func (s *Store) GetArticleBySourceID(ctx context.Context, journalID, sourceID string) (*domain.Article, error) {
	return s.Articles.GetByIndex(ctx, "source", journalID+"/"+sourceID)
}

// CreateArticle stores a new article, generating its ID when unset.
func (s *Store) CreateArticle(ctx context.Context, a *domain.Article) error {
	if a.ID == "" {
		a.ID = id.MustGenerate(id.PrefixArticle)
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.Articles.Create(ctx, a.ID, a)
}

// UpdateArticle persists changes to an existing article.
func (s *Store) UpdateArticle(ctx context.Context, a *domain.Article) error {
	a.UpdatedAt = time.Now().UTC()
	return s.Articles.Update(ctx, a.ID, a)
}

// GetIssue finds an issue by its (journal, volume, number) triple.
func (s *Store) GetIssue(ctx context.Context, journalID string, volume, number int) (*domain.Issue, error) {
	return s.Issues.GetByIndex(ctx, "key", domain.IssueKey(journalID, volume, number))
}

// GetOrCreateIssue returns the issue for the (journal, volume, number)
// triple, creating it lazily from ref when missing.
func (s *Store) GetOrCreateIssue(ctx context.Context, journalID string, ref *domain.IssueRef) (*domain.Issue, error) {
	issue, err := s.GetIssue(ctx, journalID, ref.Volume, ref.Number)
	if err == nil {
		return issue, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	issue = &domain.Issue{
		ID:          id.MustGenerate(id.PrefixIssue),
		JournalID:   journalID,
		Volume:      ref.Volume,
		Number:      ref.Number,
		Title:       ref.Title,
		PublishedAt: ref.PublishedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Issues.Create(ctx, issue.ID, issue); err != nil {
		// Lost a race with a concurrent batch on the same key: re-read.
		if errors.Is(err, ErrAlreadyExists) {
			return s.GetIssue(ctx, journalID, ref.Volume, ref.Number)
		}
		return nil, err
	}
	return issue, nil
}

// GetSectionByName finds a section by exact (case-insensitive) name within the journal.
func (s *Store) GetSectionByName(ctx context.Context, journalID, name string) (*domain.Section, error) {
	return s.Sections.GetByIndex(ctx, "key", domain.SectionKey(journalID, name))
}

// GetOrCreateSection returns the journal's section with the given name,
// creating it when missing.
func (s *Store) GetOrCreateSection(ctx context.Context, journalID, name string) (*domain.Section, error) {
	section, err := s.GetSectionByName(ctx, journalID, name)
	if err == nil {
		return section, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	section = &domain.Section{
		ID:        id.MustGenerate(id.PrefixSection),
		JournalID: journalID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Sections.Create(ctx, section.ID, section); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return s.GetSectionByName(ctx, journalID, name)
		}
		return nil, err
	}
	return section, nil
}

// GetAuthorByEmail finds an author identity by case-insensitive email match.
func (s *Store) GetAuthorByEmail(ctx context.Context, email string) (*domain.AuthorIdentity, error) {
	return s.Authors.GetByIndex(ctx, "email", email)
}

// CreateAuthor stores a new author identity, generating its ID when unset.
// The email is stored lowercased.
func (s *Store) CreateAuthor(ctx context.Context, a *domain.AuthorIdentity) error {
	if a.ID == "" {
		a.ID = id.MustGenerate(id.PrefixAuthor)
	}
	a.Email = lowercase(a.Email)
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.Authors.Create(ctx, a.ID, a)
}

// UpdateAuthor persists changes to an existing author identity.
func (s *Store) UpdateAuthor(ctx context.Context, a *domain.AuthorIdentity) error {
	a.Email = lowercase(a.Email)
	a.UpdatedAt = time.Now().UTC()
	return s.Authors.Update(ctx, a.ID, a)
}

// UpsertFrozenAuthor writes a frozen byline snapshot. If the article
// already holds a snapshot in the same byline slot, that snapshot is
// replaced; otherwise a new one is created. This keeps re-imports
// idempotent while never touching other articles' snapshots.
func (s *Store) UpsertFrozenAuthor(ctx context.Context, f *domain.FrozenAuthor) error {
	existing, err := s.FrozenAuthors.GetByIndex(ctx, "slot", FrozenSlotKey(f))
	switch {
	case err == nil:
		f.ID = existing.ID
		f.FrozenAt = existing.FrozenAt
		return s.FrozenAuthors.Update(ctx, f.ID, f)
	case errors.Is(err, ErrNotFound):
		if f.ID == "" {
			f.ID = id.MustGenerate(id.PrefixFrozen)
		}
		f.FrozenAt = time.Now().UTC()
		return s.FrozenAuthors.Create(ctx, f.ID, f)
	default:
		return err
	}
}

// ListFrozenAuthors returns the article's frozen byline, in stored slot order.
func (s *Store) ListFrozenAuthors(ctx context.Context, articleID string) ([]*domain.FrozenAuthor, error) {
	frozen, err := s.FrozenAuthors.ListByIndexPrefix(ctx, "slot", articleID+"/")
	if err != nil {
		return nil, err
	}
	// Order by sequence for stable byline rendering.
	for i := 1; i < len(frozen); i++ {
		j := i
		for j > 0 && frozen[j].Sequence < frozen[j-1].Sequence {
			frozen[j], frozen[j-1] = frozen[j-1], frozen[j]
			j--
		}
	}
	return frozen, nil
}

// DeleteFrozenAuthor removes one frozen snapshot. Only the explicit
// replace-authors flow calls this.
func (s *Store) DeleteFrozenAuthor(ctx context.Context, frozenID string) error {
	return s.FrozenAuthors.Delete(ctx, frozenID)
}

// GetJournalByPath finds a journal by its path slug.
func (s *Store) GetJournalByPath(ctx context.Context, path string) (*domain.Journal, error) {
	return s.Journals.GetByIndex(ctx, "path", path)
}

// CreateJournal stores a new journal, generating its ID when unset.
func (s *Store) CreateJournal(ctx context.Context, j *domain.Journal) error {
	if j.ID == "" {
		j.ID = id.MustGenerate(id.PrefixJournal)
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	return s.Journals.Create(ctx, j.ID, j)
}
