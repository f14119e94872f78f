package ingest

import (
	"strings"
	"time"

	"github.com/folioapp/folio-ingest/internal/domain"
)

// authoritativeFields lists the fields exempt from the blank-preserves rule.
// They are written verbatim, including when falsy, because for these an
// absent value is not distinguishable from an intentional "false"/"reset".
// Every merge path consults this table instead of hardcoding its own
// exception: mergeScalar and mergeStage check it directly, and the author
// flags are covered by the byline snapshot upsert, which rewrites the whole
// slot verbatim on every import.
var authoritativeFields = map[string]bool{
	"stage":             true,
	"is_corporate":      true,
	"is_correspondence": true,
}

// MergeOptions controls destructive merge behaviors. Both default to the
// non-destructive additive mode.
type MergeOptions struct {
	// ReplaceKeywords writes the incoming keyword set verbatim instead of
	// union-merging it into the existing set.
	ReplaceKeywords bool
	// ReplaceAuthors removes stored byline snapshots whose slot has no
	// corresponding fragment in the incoming record.
	ReplaceAuthors bool
}

// ResolvedRefs carries the resolver's outputs into the merge. Nil members
// mean the record carried no value for that reference.
type ResolvedRefs struct {
	Section *domain.Section
	Issue   *domain.Issue
	// Stage is the record's stage after crosswalk mapping.
	Stage string
	// Authors holds the matched identity for each record author fragment,
	// index-aligned; nil entries matched nothing.
	Authors []*domain.AuthorIdentity
}

// FieldChange records one field the merge will alter.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// AuthorWrite describes one byline slot to upsert.
type AuthorWrite struct {
	Fragment domain.AuthorFragment
	// Identity is the matched stored identity, nil when the fragment should
	// create a fresh one (individuals with an unseen email) or none at all
	// (corporate bylines).
	Identity *domain.AuthorIdentity
}

// MergePlan describes the writes one record requires. The merge engine
// performs no I/O; the coordinator executes the plan against the store.
type MergePlan struct {
	Article *domain.Article
	// Created is true when the plan writes a new article.
	Created bool
	Diff    []FieldChange
	Authors []AuthorWrite
	// ReplaceAuthors instructs the executor to delete byline snapshots not
	// covered by Authors.
	ReplaceAuthors bool
}

// Merge applies a canonical record onto an article snapshot under the
// blank-preserves rule. existing == nil plans a create. Pure: inputs are not
// mutated and no storage is touched.
func Merge(journal *domain.Journal, existing *domain.Article, rec *domain.MetadataRecord, refs ResolvedRefs, opts MergeOptions) (*MergePlan, []FieldError) {
	var fieldErrs []FieldError

	plan := &MergePlan{
		Created:        existing == nil,
		ReplaceAuthors: opts.ReplaceAuthors,
	}

	article := &domain.Article{JournalID: journal.ID}
	if existing != nil {
		copied := *existing
		copied.Keywords = append([]string(nil), existing.Keywords...)
		article = &copied
	}
	plan.Article = article

	mergeScalar := func(field, incoming string, target *string) {
		if domain.IsBlank(incoming) && !authoritativeFields[field] {
			return
		}
		if incoming == *target {
			return
		}
		plan.Diff = append(plan.Diff, FieldChange{Field: field, Old: *target, New: incoming})
		*target = incoming
	}

	mergeScalar("title", rec.Title, &article.Title)
	mergeScalar("abstract", rec.Abstract, &article.Abstract)
	mergeScalar("language", rec.Language, &article.Language)
	mergeScalar("doi", rec.Identifier(domain.IdentifierDOI), &article.DOI)
	mergeScalar("source_id", rec.Identifier(domain.IdentifierSource), &article.SourceID)

	mergeStage(journal, refs.Stage, article, plan, &fieldErrs)

	if refs.Section != nil && refs.Section.ID != article.SectionID {
		plan.Diff = append(plan.Diff, FieldChange{Field: "section", Old: article.SectionID, New: refs.Section.ID})
		article.SectionID = refs.Section.ID
	}
	if refs.Issue != nil && refs.Issue.ID != article.IssueID {
		plan.Diff = append(plan.Diff, FieldChange{Field: "issue", Old: article.IssueID, New: refs.Issue.ID})
		article.IssueID = refs.Issue.ID
	}

	mergeDate("date_submitted", rec.Dates.Submitted, &article.SubmittedAt, plan)
	mergeDate("date_accepted", rec.Dates.Accepted, &article.AcceptedAt, plan)
	mergeDate("date_published", rec.Dates.Published, &article.PublishedAt, plan)

	mergeKeywords(rec.Keywords, article, plan, opts.ReplaceKeywords)

	for i, fragment := range rec.Authors {
		write := AuthorWrite{Fragment: fragment}
		if i < len(refs.Authors) {
			write.Identity = refs.Authors[i]
		}
		plan.Authors = append(plan.Authors, write)
	}

	return plan, fieldErrs
}

// mergeStage merges the stage under the same table-driven blank rule as the
// scalar fields; an unrecognized symbol is a field error and the prior value
// stays.
func mergeStage(journal *domain.Journal, stage string, article *domain.Article, plan *MergePlan, fieldErrs *[]FieldError) {
	if domain.IsBlank(stage) && !authoritativeFields["stage"] {
		return
	}
	if !domain.IsBlank(stage) && !journal.StageAllowed(stage) {
		*fieldErrs = append(*fieldErrs, FieldError{
			Field:  "stage",
			Value:  stage,
			Reason: "not in the journal's stage whitelist",
		})
		return
	}
	if stage == article.Stage {
		return
	}
	plan.Diff = append(plan.Diff, FieldChange{Field: "stage", Old: article.Stage, New: stage})
	article.Stage = stage
}

func mergeDate(field string, incoming *time.Time, target **time.Time, plan *MergePlan) {
	if incoming == nil {
		return
	}
	if *target != nil && (*target).Equal(*incoming) {
		return
	}
	change := FieldChange{Field: field, New: incoming.Format(time.RFC3339)}
	if *target != nil {
		change.Old = (*target).Format(time.RFC3339)
	}
	plan.Diff = append(plan.Diff, change)
	t := *incoming
	*target = &t
}

// mergeKeywords unions the incoming set into the existing one, or replaces
// it outright in replace mode. Comparison is case-insensitive; existing
// spellings win.
func mergeKeywords(incoming []string, article *domain.Article, plan *MergePlan, replace bool) {
	if len(incoming) == 0 && !replace {
		return
	}

	before := strings.Join(article.Keywords, "; ")
	if replace {
		article.Keywords = append([]string(nil), incoming...)
	} else {
		seen := make(map[string]bool, len(article.Keywords))
		for _, k := range article.Keywords {
			seen[strings.ToLower(k)] = true
		}
		for _, k := range incoming {
			if !seen[strings.ToLower(k)] {
				seen[strings.ToLower(k)] = true
				article.Keywords = append(article.Keywords, k)
			}
		}
	}

	after := strings.Join(article.Keywords, "; ")
	if before != after {
		plan.Diff = append(plan.Diff, FieldChange{Field: "keywords", Old: before, New: after})
	}
}
