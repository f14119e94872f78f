package ingest

import (
	"context"
	"log/slog"

	"github.com/folioapp/folio-ingest/internal/crosswalk"
	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/store"
)

// ResolutionState is the outcome of an identity lookup.
type ResolutionState int

const (
	// ResolutionNotFound means no stored entity matched; the caller creates one.
	ResolutionNotFound ResolutionState = iota
	// ResolutionMatched means exactly one stored entity matched.
	ResolutionMatched
	// ResolutionAmbiguous means an identifier matched an entity outside the
	// journal scope; writing would cross journals, so the record fails.
	ResolutionAmbiguous
)

// Resolution is the outcome of resolving one record against storage.
type Resolution struct {
	State   ResolutionState
	Article *domain.Article
	// MatchedBy is the identifier kind that produced the match.
	MatchedBy domain.IdentifierKind
	// Reason explains an ambiguous outcome.
	Reason string
}

// ResolveOptions scopes one batch's resolution behavior.
type ResolveOptions struct {
	// UpdateMode enables internal-identifier lookups. A record that supplies
	// an internal ID which misses storage is a hard per-record error in this
	// mode: the caller named an explicit update target that does not exist.
	UpdateMode bool
}

// Resolver matches canonical records against stored entities. It carries
// per-batch read-through caches for sections, issues and author identities;
// call Reset at each batch start.
type Resolver struct {
	store     *store.Store
	crosswalk *crosswalk.Table
	logger    *slog.Logger

	sections map[string]*domain.Section
	issues   map[string]*domain.Issue
	authors  map[string]*domain.AuthorIdentity
}

// NewResolver creates a resolver over the given store and crosswalk table.
// A nil table behaves as an empty one.
func NewResolver(st *store.Store, table *crosswalk.Table, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = &crosswalk.Table{}
	}
	r := &Resolver{store: st, crosswalk: table, logger: logger}
	r.Reset()
	return r
}

// Reset clears the per-batch caches.
func (r *Resolver) Reset() {
	r.sections = make(map[string]*domain.Section)
	r.issues = make(map[string]*domain.Issue)
	r.authors = make(map[string]*domain.AuthorIdentity)
}

// articleLookup binds one identifier kind to its storage query. Resolution
// precedence is the order of the identifiers on the record, not a chain of
// conditionals here.
func (r *Resolver) articleLookup(ctx context.Context, journal *domain.Journal, id domain.Identifier) (*domain.Article, error) {
	switch id.Kind {
	case domain.IdentifierInternal:
		return r.store.Articles.Get(ctx, id.Value)
	case domain.IdentifierDOI:
		return r.store.GetArticleByDOI(ctx, journal.ID, id.Value)
	case domain.IdentifierSource:
		return r.store.GetArticleBySourceID(ctx, journal.ID, id.Value)
	default:
		return nil, errors.Internalf("unknown identifier kind %q", id.Kind)
	}
}

// ResolveArticle walks the record's identifiers in precedence order and
// returns the first storage hit. No hit on any identifier is NotFound.
func (r *Resolver) ResolveArticle(ctx context.Context, journal *domain.Journal, rec *domain.MetadataRecord, opts ResolveOptions) (*Resolution, error) {
	for _, ident := range rec.Identifiers {
		if ident.Kind == domain.IdentifierInternal && !opts.UpdateMode {
			continue
		}

		article, err := r.articleLookup(ctx, journal, ident)
		if errors.Is(err, store.ErrNotFound) {
			if ident.Kind == domain.IdentifierInternal {
				// The record named an explicit update target. Creating a new
				// article here would silently fork the one the operator meant.
				return nil, errors.NotFoundf("update target %s does not exist", ident.Value)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if article.JournalID != journal.ID {
			return &Resolution{
				State:  ResolutionAmbiguous,
				Reason: "identifier " + string(ident.Kind) + "=" + ident.Value + " belongs to another journal",
			}, nil
		}

		return &Resolution{State: ResolutionMatched, Article: article, MatchedBy: ident.Kind}, nil
	}

	return &Resolution{State: ResolutionNotFound}, nil
}

// ResolveSection maps the record's section to a stored section, crosswalk
// first, then get-or-create by exact name. Records with neither a code nor a
// name resolve to nil (article keeps its current section). When the journal
// enumerates its enabled sections, a name outside the enumeration is a field
// error: nothing is created and the article keeps its current section.
func (r *Resolver) ResolveSection(ctx context.Context, journal *domain.Journal, rec *domain.MetadataRecord) (*domain.Section, *FieldError, error) {
	name := rec.SectionName
	if mapped, ok := r.crosswalk.Section(rec.SourceTag, rec.SectionCode); ok {
		name = mapped
	}
	if domain.IsBlank(name) {
		return nil, nil, nil
	}
	if !journal.SectionAllowed(name) {
		return nil, &FieldError{
			Field:  "section",
			Value:  name,
			Reason: "not in the journal's enabled sections",
		}, nil
	}

	key := domain.SectionKey(journal.ID, name)
	if cached, ok := r.sections[key]; ok {
		return cached, nil, nil
	}
	section, err := r.store.GetOrCreateSection(ctx, journal.ID, name)
	if err != nil {
		return nil, nil, err
	}
	r.sections[key] = section
	return section, nil, nil
}

// ResolveStage maps a source stage code through the crosswalk, returning the
// record's stage untouched when no entry exists.
func (r *Resolver) ResolveStage(rec *domain.MetadataRecord) string {
	if mapped, ok := r.crosswalk.Stage(rec.SourceTag, rec.Stage); ok {
		return mapped
	}
	return rec.Stage
}

// ResolveIssue matches or lazily creates the issue the record references.
// Returns nil when the record carried no issue metadata.
func (r *Resolver) ResolveIssue(ctx context.Context, journal *domain.Journal, rec *domain.MetadataRecord) (*domain.Issue, error) {
	if rec.IssueRef == nil {
		return nil, nil
	}

	key := domain.IssueKey(journal.ID, rec.IssueRef.Volume, rec.IssueRef.Number)
	if cached, ok := r.issues[key]; ok {
		return cached, nil
	}
	issue, err := r.store.GetOrCreateIssue(ctx, journal.ID, rec.IssueRef)
	if err != nil {
		return nil, err
	}
	r.issues[key] = issue
	return issue, nil
}

// ResolveAuthor matches an author fragment to a stored identity by
// case-insensitive email. Corporate fragments never match: every corporate
// byline is a fresh authorship, by policy.
func (r *Resolver) ResolveAuthor(ctx context.Context, fragment *domain.AuthorFragment) (*domain.AuthorIdentity, error) {
	if fragment.IsCorporate || domain.IsBlank(fragment.Email) {
		return nil, nil
	}

	email := fragment.Email
	if cached, ok := r.authors[email]; ok {
		return cached, nil
	}
	identity, err := r.store.GetAuthorByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.authors[email] = identity
	return identity, nil
}
