package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-ingest/internal/crosswalk"
	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/store"
)

func newTestResolver(t *testing.T) (*store.Store, *Resolver, *domain.Journal) {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	journal := &domain.Journal{Path: "test-journal", DefaultLocale: "en", Stages: domain.DefaultStages}
	require.NoError(t, st.CreateJournal(context.Background(), journal))

	table, err := crosswalk.Parse([]byte("sections:\n  - code: ART\n    value: Articles\nstages:\n  - code: \"5\"\n    value: published\n"))
	require.NoError(t, err)

	return st, NewResolver(st, table, nil), journal
}

func recordWith(kind domain.IdentifierKind, value string) *domain.MetadataRecord {
	rec := &domain.MetadataRecord{SourceTag: "tabular", Row: 0}
	rec.AddIdentifier(kind, value)
	return rec
}

func TestResolveArticleDOIOutranksSourceID(t *testing.T) {
	st, resolver, journal := newTestResolver(t)
	ctx := context.Background()

	byDOI := &domain.Article{JournalID: journal.ID, DOI: "10.1/a"}
	require.NoError(t, st.CreateArticle(ctx, byDOI))
	bySource := &domain.Article{JournalID: journal.ID, SourceID: "src-1"}
	require.NoError(t, st.CreateArticle(ctx, bySource))

	rec := recordWith(domain.IdentifierDOI, "10.1/a")
	rec.AddIdentifier(domain.IdentifierSource, "src-1")

	resolution, err := resolver.ResolveArticle(ctx, journal, rec, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, ResolutionMatched, resolution.State)
	assert.Equal(t, byDOI.ID, resolution.Article.ID)
	assert.Equal(t, domain.IdentifierDOI, resolution.MatchedBy)
}

func TestResolveArticleFallsThroughToSourceID(t *testing.T) {
	st, resolver, journal := newTestResolver(t)
	ctx := context.Background()

	bySource := &domain.Article{JournalID: journal.ID, SourceID: "src-1"}
	require.NoError(t, st.CreateArticle(ctx, bySource))

	rec := recordWith(domain.IdentifierDOI, "10.1/unseen")
	rec.AddIdentifier(domain.IdentifierSource, "src-1")

	resolution, err := resolver.ResolveArticle(ctx, journal, rec, ResolveOptions{})
	require.NoError(t, err)
	require.Equal(t, ResolutionMatched, resolution.State)
	assert.Equal(t, bySource.ID, resolution.Article.ID)
}

func TestResolveArticleNoHitIsNotFound(t *testing.T) {
	_, resolver, journal := newTestResolver(t)

	resolution, err := resolver.ResolveArticle(context.Background(), journal, recordWith(domain.IdentifierDOI, "10.1/x"), ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionNotFound, resolution.State)
}

func TestResolveArticleInternalIDIgnoredOutsideUpdateMode(t *testing.T) {
	_, resolver, journal := newTestResolver(t)

	rec := recordWith(domain.IdentifierInternal, "art-missing")
	resolution, err := resolver.ResolveArticle(context.Background(), journal, rec, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, ResolutionNotFound, resolution.State)
}

func TestResolveArticleUpdateModeMissingInternalIDIsHardError(t *testing.T) {
	_, resolver, journal := newTestResolver(t)

	rec := recordWith(domain.IdentifierInternal, "art-missing")
	_, err := resolver.ResolveArticle(context.Background(), journal, rec, ResolveOptions{UpdateMode: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestResolveArticleCrossJournalMatchIsAmbiguous(t *testing.T) {
	st, resolver, journal := newTestResolver(t)
	ctx := context.Background()

	other := &domain.Journal{Path: "other-journal", Stages: domain.DefaultStages}
	require.NoError(t, st.CreateJournal(ctx, other))
	foreign := &domain.Article{JournalID: other.ID}
	require.NoError(t, st.CreateArticle(ctx, foreign))

	rec := recordWith(domain.IdentifierInternal, foreign.ID)
	resolution, err := resolver.ResolveArticle(ctx, journal, rec, ResolveOptions{UpdateMode: true})
	require.NoError(t, err)
	assert.Equal(t, ResolutionAmbiguous, resolution.State)
	assert.NotEmpty(t, resolution.Reason)
}

func TestResolveSectionCrosswalkWinsOverName(t *testing.T) {
	_, resolver, journal := newTestResolver(t)

	rec := &domain.MetadataRecord{SourceTag: "tabular", SectionCode: "ART", SectionName: "Misc"}
	section, fieldErr, err := resolver.ResolveSection(context.Background(), journal, rec)
	require.NoError(t, err)
	require.Nil(t, fieldErr)
	require.NotNil(t, section)
	assert.Equal(t, "Articles", section.Name)
}

func TestResolveSectionGetOrCreateByName(t *testing.T) {
	_, resolver, journal := newTestResolver(t)
	ctx := context.Background()

	rec := &domain.MetadataRecord{SourceTag: "tabular", SectionName: "Case Reports"}
	first, _, err := resolver.ResolveSection(ctx, journal, rec)
	require.NoError(t, err)
	second, _, err := resolver.ResolveSection(ctx, journal, rec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveSectionBlankIsNil(t *testing.T) {
	_, resolver, journal := newTestResolver(t)

	section, fieldErr, err := resolver.ResolveSection(context.Background(), journal, &domain.MetadataRecord{SourceTag: "tabular"})
	require.NoError(t, err)
	assert.Nil(t, fieldErr)
	assert.Nil(t, section)
}

func TestResolveSectionOutsideEnabledSet(t *testing.T) {
	st, resolver, journal := newTestResolver(t)
	ctx := context.Background()
	journal.EnabledSections = []string{"Articles", "Reviews"}

	rec := &domain.MetadataRecord{SourceTag: "tabular", SectionName: "Totally Unknown Section"}
	section, fieldErr, err := resolver.ResolveSection(ctx, journal, rec)
	require.NoError(t, err)
	assert.Nil(t, section)
	require.NotNil(t, fieldErr)
	assert.Equal(t, "section", fieldErr.Field)

	// Nothing was created for the rejected name.
	_, err = st.GetSectionByName(ctx, journal.ID, "Totally Unknown Section")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Enumerated names still resolve, case-insensitively.
	section, fieldErr, err = resolver.ResolveSection(ctx, journal, &domain.MetadataRecord{SourceTag: "tabular", SectionName: "reviews"})
	require.NoError(t, err)
	require.Nil(t, fieldErr)
	require.NotNil(t, section)
}

func TestResolveStageCrosswalk(t *testing.T) {
	_, resolver, _ := newTestResolver(t)

	assert.Equal(t, "published", resolver.ResolveStage(&domain.MetadataRecord{SourceTag: "wire", Stage: "5"}))
	assert.Equal(t, "review", resolver.ResolveStage(&domain.MetadataRecord{SourceTag: "wire", Stage: "review"}))
}

func TestResolveIssueDefaultsToZeroParts(t *testing.T) {
	_, resolver, journal := newTestResolver(t)
	ctx := context.Background()

	rec := &domain.MetadataRecord{IssueRef: &domain.IssueRef{Title: "Unnumbered"}}
	first, err := resolver.ResolveIssue(ctx, journal, rec)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Zero(t, first.Volume)
	assert.Zero(t, first.Number)

	second, err := resolver.ResolveIssue(ctx, journal, rec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same (journal, 0, 0) triple must match")
}

func TestResolveAuthorCorporateNeverMatches(t *testing.T) {
	st, resolver, _ := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, st.CreateAuthor(ctx, &domain.AuthorIdentity{Email: "acme@example.org"}))

	identity, err := resolver.ResolveAuthor(ctx, &domain.AuthorFragment{
		Institution: "Acme", IsCorporate: true,
	})
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestResolveAuthorEmailCaseInsensitive(t *testing.T) {
	st, resolver, _ := newTestResolver(t)
	ctx := context.Background()

	stored := &domain.AuthorIdentity{Email: "A.Okafor@Example.org", LastName: "Okafor"}
	require.NoError(t, st.CreateAuthor(ctx, stored))

	identity, err := resolver.ResolveAuthor(ctx, &domain.AuthorFragment{Email: "a.okafor@example.org"})
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, stored.ID, identity.ID)
}
