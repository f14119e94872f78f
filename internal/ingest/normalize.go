package ingest

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/folioapp/folio-ingest/internal/domain"
	"github.com/folioapp/folio-ingest/internal/validation"
)

// NormalizeOptions configures normalization for one batch.
type NormalizeOptions struct {
	// JournalLocale is the journal's default locale for delocalizing
	// locale-keyed fields.
	JournalLocale string
	// FallbackLocale is used when the journal declares none (config default).
	FallbackLocale string
}

// Normalizer maps raw adapter records into canonical metadata records.
// A bad field never fails the record: the field takes its zero value and a
// FieldError is attached instead.
type Normalizer struct {
	opts      NormalizeOptions
	validator *validation.Validator
	logger    *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(opts NormalizeOptions, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FallbackLocale == "" {
		opts.FallbackLocale = "en"
	}
	return &Normalizer{
		opts:      opts,
		validator: validation.New(),
		logger:    logger,
	}
}

// Normalize converts one raw record into the canonical shape.
func (n *Normalizer) Normalize(raw *RawRecord) (*domain.MetadataRecord, []FieldError) {
	var fieldErrs []FieldError

	rec := &domain.MetadataRecord{
		SourceTag: raw.SourceTag,
		Row:       raw.Row,
	}

	rec.AddIdentifier(domain.IdentifierInternal, raw.InternalID)
	rec.AddIdentifier(domain.IdentifierDOI, normalizeDOI(raw.DOI))
	rec.AddIdentifier(domain.IdentifierSource, raw.SourceID)

	rec.Title = n.localizedOrScalar(raw.LocalizedTitle, raw.Title)
	rec.Abstract = htmlToMarkdown(n.localizedOrScalar(raw.LocalizedAbstract, raw.Abstract))

	if lang := strings.TrimSpace(raw.Language); lang != "" {
		tag, err := language.Parse(lang)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: "language", Value: lang, Reason: "unrecognized language tag"})
		} else {
			rec.Language = tag.String()
		}
	}

	rec.SectionName = strings.TrimSpace(raw.SectionName)
	rec.SectionCode = strings.TrimSpace(raw.SectionCode)
	rec.Stage = strings.ToLower(strings.TrimSpace(raw.Stage))
	rec.Keywords = splitKeywords(raw.Keywords)

	rec.Dates.Submitted = n.parseDateField(raw.DateSubmitted, "date_submitted", &fieldErrs)
	rec.Dates.Accepted = n.parseDateField(raw.DateAccepted, "date_accepted", &fieldErrs)
	rec.Dates.Published = n.parseDateField(raw.DatePublished, "date_published", &fieldErrs)

	if raw.HasIssue() {
		ref := &domain.IssueRef{
			Title: strings.TrimSpace(raw.IssueTitle),
		}
		ref.Volume = n.parseIntField(raw.Volume, "volume", &fieldErrs)
		ref.Number = n.parseIntField(raw.Number, "number", &fieldErrs)
		ref.PublishedAt = n.parseDateField(raw.IssueDatePublished, "issue_date_published", &fieldErrs)
		rec.IssueRef = ref
	}

	for i, rawAuthor := range raw.Authors {
		fragment, errs := n.normalizeAuthor(rawAuthor, i)
		if fragment == nil {
			continue
		}
		rec.Authors = append(rec.Authors, *fragment)
		fieldErrs = append(fieldErrs, errs...)
	}

	for _, att := range raw.Attachments {
		if att.Err != nil {
			fieldErrs = append(fieldErrs, FieldError{
				Field:  "attachment:" + att.Name,
				Reason: att.Err.Error(),
			})
		}
	}

	return rec, fieldErrs
}

// normalizeAuthor converts one raw author entry. Returns nil for entries
// with no usable name or institution at all.
func (n *Normalizer) normalizeAuthor(raw RawAuthor, sequence int) (*domain.AuthorFragment, []FieldError) {
	var fieldErrs []FieldError

	fragment := &domain.AuthorFragment{
		FirstName:        strings.TrimSpace(raw.FirstName),
		MiddleName:       strings.TrimSpace(raw.MiddleName),
		LastName:         strings.TrimSpace(raw.LastName),
		Institution:      strings.TrimSpace(raw.Institution),
		Department:       strings.TrimSpace(raw.Department),
		Biography:        htmlToMarkdown(n.localizedOrScalar(raw.LocalizedBiography, raw.Biography)),
		IsCorporate:      parseBool(raw.Corporate),
		IsCorrespondence: parseBool(raw.Correspondence),
		Sequence:         sequence,
	}

	if fragment.LastName == "" && fragment.Institution == "" {
		return nil, nil
	}

	if email := strings.ToLower(strings.TrimSpace(raw.Email)); email != "" {
		switch {
		case fragment.IsCorporate:
			// Corporate bylines carry no identity; an email on one is
			// source noise, not an identity key.
			fieldErrs = append(fieldErrs, FieldError{Field: "author_email", Value: email, Reason: "ignored on corporate author"})
		case n.validator.Var(email, "email") != nil:
			fieldErrs = append(fieldErrs, FieldError{Field: "author_email", Value: email, Reason: "invalid email address"})
		default:
			fragment.Email = email
		}
	}

	if orcid := strings.TrimSpace(raw.ORCID); orcid != "" {
		normalized, ok := normalizeORCID(orcid)
		if !ok {
			fieldErrs = append(fieldErrs, FieldError{Field: "author_orcid", Value: orcid, Reason: "invalid ORCID"})
		} else {
			fragment.ORCID = normalized
		}
	}

	return fragment, fieldErrs
}

// localizedOrScalar selects a value from a locale-keyed map, preferring the
// journal locale, then the configured fallback, then the first populated
// locale in deterministic order. Falls back to the plain scalar when the
// map is empty.
func (n *Normalizer) localizedOrScalar(localized map[string]string, scalar string) string {
	if len(localized) == 0 {
		return strings.TrimSpace(scalar)
	}

	available := make([]string, 0, len(localized))
	tags := make([]language.Tag, 0, len(localized))
	for locale, value := range localized {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if tag, err := language.Parse(locale); err == nil {
			available = append(available, locale)
			tags = append(tags, tag)
		}
	}
	if len(available) == 0 {
		return strings.TrimSpace(scalar)
	}

	matcher := language.NewMatcher(tags)
	for _, want := range []string{n.opts.JournalLocale, n.opts.FallbackLocale} {
		if want == "" {
			continue
		}
		desired, err := language.Parse(want)
		if err != nil {
			continue
		}
		if _, index, conf := matcher.Match(desired); conf >= language.High {
			return strings.TrimSpace(localized[available[index]])
		}
	}

	// No locale matched: take the first populated one, in sorted order so
	// the choice is stable across runs.
	sort.Strings(available)
	return strings.TrimSpace(localized[available[0]])
}

func (n *Normalizer) parseDateField(value, field string, fieldErrs *[]FieldError) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, ok := parseDate(value)
	if !ok {
		*fieldErrs = append(*fieldErrs, FieldError{Field: field, Value: value, Reason: "unparseable date"})
		return nil
	}
	return &t
}

func (n *Normalizer) parseIntField(value, field string, fieldErrs *[]FieldError) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		*fieldErrs = append(*fieldErrs, FieldError{Field: field, Value: value, Reason: "not a non-negative integer"})
		return 0
	}
	return i
}

// normalizeDOI strips resolver URL prefixes and the "doi:" scheme.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if rest, ok := strings.CutPrefix(strings.ToLower(doi), prefix); ok {
			// Cut on the original string to preserve suffix casing
			doi = doi[len(doi)-len(rest):]
			break
		}
	}
	return doi
}

var orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// normalizeORCID reduces an ORCID to its bare 0000-0000-0000-000X form.
func normalizeORCID(orcid string) (string, bool) {
	orcid = strings.TrimSpace(orcid)
	for _, prefix := range []string{"https://orcid.org/", "http://orcid.org/"} {
		if rest, ok := strings.CutPrefix(strings.ToLower(orcid), prefix); ok {
			orcid = orcid[len(orcid)-len(rest):]
			break
		}
	}
	orcid = strings.ToUpper(orcid)
	if !orcidPattern.MatchString(orcid) {
		return "", false
	}
	return orcid, true
}

// splitKeywords splits a delimiter-separated keyword field into a
// deduplicated list. Order of first occurrence is kept but not significant.
func splitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ','
	})

	seen := make(map[string]bool, len(fields))
	var keywords []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[strings.ToLower(f)] {
			continue
		}
		seen[strings.ToLower(f)] = true
		keywords = append(keywords, f)
	}
	return keywords
}

// parseBool accepts the boolean spellings seen across sources.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
