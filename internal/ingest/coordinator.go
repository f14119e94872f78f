package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/id"
	"github.com/folioapp/folio-ingest/internal/store"
)

// RowErrorSource is implemented by adapters that detect per-row failures
// while reading (the tabular grouper's orphan rows). Those rows failed
// before normalization but still belong in the batch report.
type RowErrorSource interface {
	RowErrors() []*RecordError
}

// BatchOptions configures one coordinator run.
type BatchOptions struct {
	Journal *domain.Journal
	// UpdateMode enables internal-identifier resolution and makes a missing
	// update target a hard per-record error.
	UpdateMode      bool
	ReplaceKeywords bool
	ReplaceAuthors  bool
	// StrictFields turns normalization field errors into record failures
	// instead of committing the record with zeroed fields. Tabular update
	// flows run strict so the failed-rows file catches every bad cell.
	StrictFields bool
	// FallbackLocale is used when the journal declares no default locale.
	FallbackLocale string
}

// Coordinator drives a source through normalize, resolve, merge and commit,
// isolating failures per record. It is the only component aware of the whole
// batch.
type Coordinator struct {
	store    *store.Store
	resolver *Resolver
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator over the given store and resolver.
func NewCoordinator(st *store.Store, resolver *Resolver, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: st, resolver: resolver, logger: logger}
}

// Run processes the whole source as one batch. An error from the source
// itself (a batch validation failure) aborts before any write; after that
// point every failure is per-record and the batch continues. Cancellation is
// checked once per record boundary.
func (c *Coordinator) Run(ctx context.Context, source Source, opts BatchOptions) (*Report, error) {
	if opts.Journal == nil {
		return nil, errors.Validation("batch needs a journal scope")
	}

	started := time.Now()
	report := &Report{
		BatchID:   id.MustGenerate(id.PrefixBatch),
		SourceTag: source.Tag(),
		StartedAt: started.UTC(),
	}

	records, err := source.Records(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeBatchValidation, "reading source %s", source.Tag())
	}
	if rowErrs, ok := source.(RowErrorSource); ok {
		for _, recordErr := range rowErrs.RowErrors() {
			report.fail(recordErr)
		}
	}

	c.resolver.Reset()
	normalizer := NewNormalizer(NormalizeOptions{
		JournalLocale:  opts.Journal.DefaultLocale,
		FallbackLocale: opts.FallbackLocale,
	}, c.logger)

	log := c.logger.With("batch_id", report.BatchID, "source", source.Tag(), "journal", opts.Journal.ID)
	log.Info("batch started", "records", len(records))

	for _, raw := range records {
		if ctx.Err() != nil {
			report.Duration = time.Since(started)
			return report, ctx.Err()
		}

		outcome, recordErr := c.processRecord(ctx, normalizer, raw, opts)
		if recordErr != nil {
			log.Warn("record failed",
				"row", recordErr.Row, "stage", recordErr.Stage, "reason", recordErr.Reason)
			report.fail(recordErr)
			continue
		}
		report.Committed = append(report.Committed, *outcome)
	}

	report.Duration = time.Since(started)
	log.Info("batch finished",
		"committed", len(report.Committed), "failed", len(report.Failed),
		"duration", report.Duration)
	return report, nil
}

// processRecord runs one record through the pipeline stages. The returned
// RecordError names the stage that failed.
func (c *Coordinator) processRecord(ctx context.Context, normalizer *Normalizer, raw *RawRecord, opts BatchOptions) (*CommittedRecord, *RecordError) {
	journal := opts.Journal

	rec, fieldErrs := normalizer.Normalize(raw)
	if opts.StrictFields && len(fieldErrs) > 0 {
		return nil, NewRecordError(rec.Row, rec.SourceTag, "normalize", fieldErrs[0].Error(), nil)
	}

	resolution, err := c.resolver.ResolveArticle(ctx, journal, rec, ResolveOptions{UpdateMode: opts.UpdateMode})
	if err != nil {
		return nil, NewRecordError(rec.Row, rec.SourceTag, "resolve", "article lookup failed", err)
	}
	if resolution.State == ResolutionAmbiguous {
		return nil, NewRecordError(rec.Row, rec.SourceTag, "resolve", resolution.Reason, nil)
	}

	section, sectionErr, err := c.resolver.ResolveSection(ctx, journal, rec)
	if err != nil {
		return nil, NewRecordError(rec.Row, rec.SourceTag, "resolve", "section lookup failed", err)
	}
	if sectionErr != nil {
		fieldErrs = append(fieldErrs, *sectionErr)
	}
	issue, err := c.resolver.ResolveIssue(ctx, journal, rec)
	if err != nil {
		return nil, NewRecordError(rec.Row, rec.SourceTag, "resolve", "issue lookup failed", err)
	}

	identities := make([]*domain.AuthorIdentity, len(rec.Authors))
	for i := range rec.Authors {
		identities[i], err = c.resolver.ResolveAuthor(ctx, &rec.Authors[i])
		if err != nil {
			return nil, NewRecordError(rec.Row, rec.SourceTag, "resolve", "author lookup failed", err)
		}
	}

	refs := ResolvedRefs{
		Section: section,
		Issue:   issue,
		Stage:   c.resolver.ResolveStage(rec),
		Authors: identities,
	}
	plan, mergeErrs := Merge(journal, resolution.Article, rec, refs, MergeOptions{
		ReplaceKeywords: opts.ReplaceKeywords,
		ReplaceAuthors:  opts.ReplaceAuthors,
	})
	fieldErrs = append(fieldErrs, mergeErrs...)

	if err := c.commit(ctx, plan); err != nil {
		return nil, NewRecordError(rec.Row, rec.SourceTag, "commit", "store write failed", err)
	}

	return &CommittedRecord{
		Row:         rec.Row,
		SourceTag:   rec.SourceTag,
		ArticleID:   plan.Article.ID,
		Created:     plan.Created,
		Changes:     len(plan.Diff),
		FieldErrors: fieldErrs,
	}, nil
}

// commit executes a merge plan against the store.
func (c *Coordinator) commit(ctx context.Context, plan *MergePlan) error {
	if plan.Created {
		if err := c.store.CreateArticle(ctx, plan.Article); err != nil {
			return err
		}
	} else if len(plan.Diff) > 0 {
		if err := c.store.UpdateArticle(ctx, plan.Article); err != nil {
			return err
		}
	}

	written := make(map[string]bool, len(plan.Authors))
	for _, write := range plan.Authors {
		frozen, err := c.writeAuthor(ctx, plan.Article.ID, write)
		if err != nil {
			return err
		}
		written[store.FrozenSlotKey(frozen)] = true
	}

	if plan.ReplaceAuthors {
		stored, err := c.store.ListFrozenAuthors(ctx, plan.Article.ID)
		if err != nil {
			return err
		}
		for _, frozen := range stored {
			if !written[store.FrozenSlotKey(frozen)] {
				if err := c.store.DeleteFrozenAuthor(ctx, frozen.ID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// writeAuthor upserts one byline slot: the identity first (individuals
// only), then the frozen snapshot.
func (c *Coordinator) writeAuthor(ctx context.Context, articleID string, write AuthorWrite) (*domain.FrozenAuthor, error) {
	fragment := write.Fragment

	var authorID string
	switch {
	case fragment.IsCorporate:
		// No identity: corporate bylines are never deduplicated.
	case write.Identity != nil:
		authorID = write.Identity.ID
		if updated := applyFragmentToIdentity(write.Identity, fragment); updated {
			if err := c.store.UpdateAuthor(ctx, write.Identity); err != nil {
				return nil, err
			}
		}
	case fragment.Email != "":
		identity := &domain.AuthorIdentity{
			FirstName:   fragment.FirstName,
			MiddleName:  fragment.MiddleName,
			LastName:    fragment.LastName,
			Email:       fragment.Email,
			Institution: fragment.Institution,
			Department:  fragment.Department,
			Biography:   fragment.Biography,
			ORCID:       fragment.ORCID,
		}
		if err := c.store.CreateAuthor(ctx, identity); err != nil {
			return nil, err
		}
		authorID = identity.ID
	}

	frozen := &domain.FrozenAuthor{
		ArticleID:        articleID,
		AuthorID:         authorID,
		FirstName:        fragment.FirstName,
		MiddleName:       fragment.MiddleName,
		LastName:         fragment.LastName,
		Email:            fragment.Email,
		Institution:      fragment.Institution,
		IsCorporate:      fragment.IsCorporate,
		IsCorrespondence: fragment.IsCorrespondence,
		Sequence:         fragment.Sequence,
	}
	if err := c.store.UpsertFrozenAuthor(ctx, frozen); err != nil {
		return nil, err
	}
	return frozen, nil
}

// applyFragmentToIdentity updates a live identity's profile from a fragment
// under the blank-preserves rule. Returns true when anything changed.
func applyFragmentToIdentity(identity *domain.AuthorIdentity, fragment domain.AuthorFragment) bool {
	updated := false
	apply := func(incoming string, target *string) {
		if domain.IsBlank(incoming) || incoming == *target {
			return
		}
		*target = incoming
		updated = true
	}
	apply(fragment.FirstName, &identity.FirstName)
	apply(fragment.MiddleName, &identity.MiddleName)
	apply(fragment.LastName, &identity.LastName)
	apply(fragment.Institution, &identity.Institution)
	apply(fragment.Department, &identity.Department)
	apply(fragment.Biography, &identity.Biography)
	apply(fragment.ORCID, &identity.ORCID)
	return updated
}
