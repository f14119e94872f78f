package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-ingest/internal/crosswalk"
	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/store"
)

type fakeSource struct {
	tag     string
	records []*RawRecord
	rowErrs []*RecordError
	err     error
}

func (s *fakeSource) Tag() string { return s.tag }

func (s *fakeSource) Records(ctx context.Context) ([]*RawRecord, error) {
	return s.records, s.err
}

func (s *fakeSource) RowErrors() []*RecordError { return s.rowErrs }

func newTestPipeline(t *testing.T) (*store.Store, *Coordinator, *domain.Journal) {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	journal := &domain.Journal{Path: "test-journal", DefaultLocale: "en", Stages: domain.DefaultStages}
	require.NoError(t, st.CreateJournal(context.Background(), journal))

	resolver := NewResolver(st, &crosswalk.Table{}, nil)
	return st, NewCoordinator(st, resolver, nil), journal
}

func countArticles(t *testing.T, st *store.Store) int {
	t.Helper()
	count := 0
	for _, err := range st.Articles.List(context.Background()) {
		require.NoError(t, err)
		count++
	}
	return count
}

func TestRunCommitsAndCreates(t *testing.T) {
	st, coordinator, journal := newTestPipeline(t)

	source := &fakeSource{tag: "jsondump", records: []*RawRecord{{
		SourceTag: "jsondump", Row: 0,
		SourceID: "native-1",
		Title:    "Soil chemistry",
		Stage:    "published",
		Authors:  []RawAuthor{{LastName: "Adeyemi", Email: "a@example.org"}},
	}}}

	report, err := coordinator.Run(context.Background(), source, BatchOptions{Journal: journal})
	require.NoError(t, err)
	require.Len(t, report.Committed, 1)
	assert.True(t, report.Committed[0].Created)
	assert.Empty(t, report.Failed)

	article, err := st.GetArticleBySourceID(context.Background(), journal.ID, "native-1")
	require.NoError(t, err)
	assert.Equal(t, "Soil chemistry", article.Title)
	assert.Equal(t, "published", article.Stage)

	frozen, err := st.ListFrozenAuthors(context.Background(), article.ID)
	require.NoError(t, err)
	require.Len(t, frozen, 1)
	assert.NotEmpty(t, frozen[0].AuthorID, "individual byline links its live identity")
}

func TestRunIsIdempotent(t *testing.T) {
	st, coordinator, journal := newTestPipeline(t)

	records := []*RawRecord{{
		SourceTag: "jsondump", Row: 0,
		SourceID: "native-1",
		DOI:      "10.1234/xyz",
		Title:    "Repeatable",
		Authors: []RawAuthor{
			{LastName: "Adeyemi", Email: "a@example.org"},
			{Institution: "Acme Labs", Corporate: "1"},
		},
	}}
	source := &fakeSource{tag: "jsondump", records: records}

	for run := 0; run < 2; run++ {
		report, err := coordinator.Run(context.Background(), source, BatchOptions{Journal: journal})
		require.NoError(t, err)
		require.Len(t, report.Committed, 1, "run %d", run)
	}

	assert.Equal(t, 1, countArticles(t, st))

	article, err := st.GetArticleByDOI(context.Background(), journal.ID, "10.1234/xyz")
	require.NoError(t, err)
	frozen, err := st.ListFrozenAuthors(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Len(t, frozen, 2, "re-import must not duplicate byline snapshots")
}

func TestRunCorporateAuthorsNeverDeduplicate(t *testing.T) {
	st, coordinator, journal := newTestPipeline(t)

	source := &fakeSource{tag: "jsondump", records: []*RawRecord{
		{SourceTag: "jsondump", Row: 0, SourceID: "n-1", Title: "First",
			Authors: []RawAuthor{{Institution: "Acme", Corporate: "1"}}},
		{SourceTag: "jsondump", Row: 1, SourceID: "n-2", Title: "Second",
			Authors: []RawAuthor{{Institution: "Acme", Corporate: "1"}}},
	}}

	report, err := coordinator.Run(context.Background(), source, BatchOptions{Journal: journal})
	require.NoError(t, err)
	require.Len(t, report.Committed, 2)

	// Two distinct frozen snapshots, zero shared identities.
	for _, committed := range report.Committed {
		frozen, err := st.ListFrozenAuthors(context.Background(), committed.ArticleID)
		require.NoError(t, err)
		require.Len(t, frozen, 1)
		assert.True(t, frozen[0].IsCorporate)
		assert.Empty(t, frozen[0].AuthorID)
	}

	identityCount := 0
	for _, err := range st.Authors.List(context.Background()) {
		require.NoError(t, err)
		identityCount++
	}
	assert.Zero(t, identityCount)
}

func TestRunUpdatesMatchedArticle(t *testing.T) {
	st, coordinator, journal := newTestPipeline(t)
	ctx := context.Background()

	existing := &domain.Article{JournalID: journal.ID, DOI: "10.1/doi-match", Title: "Original", Abstract: "Kept"}
	require.NoError(t, st.CreateArticle(ctx, existing))

	source := &fakeSource{tag: "jsondump", records: []*RawRecord{{
		SourceTag: "jsondump", Row: 0,
		DOI:      "10.1/doi-match",
		SourceID: "src-new",
		Title:    "Updated title",
	}}}

	report, err := coordinator.Run(ctx, source, BatchOptions{Journal: journal})
	require.NoError(t, err)
	require.Len(t, report.Committed, 1)
	assert.Equal(t, existing.ID, report.Committed[0].ArticleID)
	assert.False(t, report.Committed[0].Created)

	updated, err := st.Articles.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", updated.Title)
	assert.Equal(t, "src-new", updated.SourceID)
	assert.Equal(t, "Kept", updated.Abstract, "blank abstract must preserve")
	assert.Equal(t, 1, countArticles(t, st))
}

func TestRunPartialFailureIsolation(t *testing.T) {
	_, coordinator, journal := newTestPipeline(t)

	var records []*RawRecord
	for i := 0; i < 100; i++ {
		rec := &RawRecord{
			SourceTag: "tabular", Row: i,
			SourceID: fmt.Sprintf("native-%d", i),
			Title:    fmt.Sprintf("Article %d", i),
		}
		if i == 42 {
			rec.DatePublished = "not-a-date"
		}
		records = append(records, rec)
	}
	source := &fakeSource{tag: "tabular", records: records}

	report, err := coordinator.Run(context.Background(), source, BatchOptions{
		Journal:      journal,
		StrictFields: true,
	})
	require.NoError(t, err)
	assert.Len(t, report.Committed, 99)
	require.Len(t, report.Failed, 1)
	failed := report.Failed[0]
	assert.Equal(t, 42, failed.Row)
	assert.Contains(t, failed.Reason, "date_published")
}

func TestRunLenientModeCommitsWithFieldErrors(t *testing.T) {
	_, coordinator, journal := newTestPipeline(t)

	source := &fakeSource{tag: "jsondump", records: []*RawRecord{{
		SourceTag: "jsondump", Row: 0, SourceID: "n-1",
		Title: "Good title", DatePublished: "not-a-date",
	}}}

	report, err := coordinator.Run(context.Background(), source, BatchOptions{Journal: journal})
	require.NoError(t, err)
	require.Len(t, report.Committed, 1)
	require.Len(t, report.Committed[0].FieldErrors, 1)
	assert.Equal(t, "date_published", report.Committed[0].FieldErrors[0].Field)
}

func TestRunUpdateModeMissingTargetFailsRecord(t *testing.T) {
	_, coordinator, journal := newTestPipeline(t)

	source := &fakeSource{tag: "tabular", records: []*RawRecord{{
		SourceTag: "tabular", Row: 0,
		InternalID: "art-does-not-exist",
		Title:      "Ghost update",
	}}}

	report, err := coordinator.Run(context.Background(), source, BatchOptions{
		Journal:    journal,
		UpdateMode: true,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Committed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "resolve", report.Failed[0].Stage)
}

func TestRunCarriesAdapterRowErrors(t *testing.T) {
	_, coordinator, journal := newTestPipeline(t)

	source := &fakeSource{
		tag: "tabular",
		records: []*RawRecord{{
			SourceTag: "tabular", Row: 1, SourceID: "n-1", Title: "Valid",
		}},
		rowErrs: []*RecordError{
			NewRecordError(0, "tabular", "group", "author continuation row with no preceding article row", nil),
		},
	}

	report, err := coordinator.Run(context.Background(), source, BatchOptions{Journal: journal})
	require.NoError(t, err)
	assert.Len(t, report.Committed, 1)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "group", report.Failed[0].Stage)
}

func TestRunBatchValidationErrorAbortsBeforeWrites(t *testing.T) {
	st, coordinator, journal := newTestPipeline(t)

	source := &fakeSource{tag: "tabular", err: fmt.Errorf("unrecognized header %q", "favourite_colour")}

	_, err := coordinator.Run(context.Background(), source, BatchOptions{Journal: journal})
	require.Error(t, err)
	assert.Zero(t, countArticles(t, st))
}

func TestRunCancellationBetweenRecords(t *testing.T) {
	_, coordinator, journal := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{tag: "jsondump", records: []*RawRecord{
		{SourceTag: "jsondump", Row: 0, SourceID: "n-1", Title: "Never processed"},
	}}

	report, err := coordinator.Run(ctx, source, BatchOptions{Journal: journal})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report, "partial report survives cancellation")
	assert.Empty(t, report.Committed)
}

func TestRunReplaceAuthorsRemovesStaleSlots(t *testing.T) {
	st, coordinator, journal := newTestPipeline(t)
	ctx := context.Background()

	first := &fakeSource{tag: "jsondump", records: []*RawRecord{{
		SourceTag: "jsondump", Row: 0, SourceID: "n-1", Title: "Article",
		Authors: []RawAuthor{
			{LastName: "Adeyemi", Email: "a@example.org"},
			{LastName: "Brandt", Email: "b@example.org"},
		},
	}}}
	_, err := coordinator.Run(ctx, first, BatchOptions{Journal: journal})
	require.NoError(t, err)

	second := &fakeSource{tag: "jsondump", records: []*RawRecord{{
		SourceTag: "jsondump", Row: 0, SourceID: "n-1", Title: "Article",
		Authors: []RawAuthor{{LastName: "Adeyemi", Email: "a@example.org"}},
	}}}

	// Default mode is additive: the absent author stays.
	_, err = coordinator.Run(ctx, second, BatchOptions{Journal: journal})
	require.NoError(t, err)
	article, err := st.GetArticleBySourceID(ctx, journal.ID, "n-1")
	require.NoError(t, err)
	frozen, err := st.ListFrozenAuthors(ctx, article.ID)
	require.NoError(t, err)
	assert.Len(t, frozen, 2)

	// Replace mode removes the slot not present in the batch.
	_, err = coordinator.Run(ctx, second, BatchOptions{Journal: journal, ReplaceAuthors: true})
	require.NoError(t, err)
	frozen, err = st.ListFrozenAuthors(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, frozen, 1)
	assert.Equal(t, "a@example.org", frozen[0].Email)
}

func TestFailedRowsCSV(t *testing.T) {
	report := &Report{
		Failed: []FailedRecord{
			{Row: 3, SourceTag: "tabular", Stage: "normalize", Reason: `field date_published: unparseable date (value "never")`},
		},
	}

	data, err := report.FailedRowsCSV()
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "row,source,stage,reason", lines[0])
	assert.Contains(t, lines[1], "3,tabular,normalize")

	empty := &Report{}
	data, err = empty.FailedRowsCSV()
	require.NoError(t, err)
	assert.Nil(t, data)
}
