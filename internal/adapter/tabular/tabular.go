// Package tabular reads the comma-delimited export format: UTF-8, header
// row drawn from a fixed versioned column set, one article spread over a
// primary row plus author continuation rows.
package tabular

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"

	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/ingest"
	"github.com/folioapp/folio-ingest/internal/transport"
)

// Tag identifies this adapter in error attribution.
const Tag = "tabular"

// recognizedColumns is the versioned header set. Importers must reject
// anything outside it up front: a typoed header would otherwise silently
// drop a whole column of data.
var recognizedColumns = map[string]bool{
	// journal overrides
	"journal_path":   true,
	"journal_locale": true,
	// article
	"internal_id":      true,
	"source_id":        true,
	"doi":              true,
	"title":            true,
	"title_prefix":     true,
	"subtitle":         true,
	"abstract":         true,
	"language":         true,
	"section_name":     true,
	"section_code":     true,
	"stage":            true,
	"keywords":         true,
	"date_submitted":   true,
	"date_accepted":    true,
	"date_published":   true,
	"pages":            true,
	"cover_url":        true,
	"license_url":      true,
	"copyright_holder": true,
	"copyright_year":   true,
	// galleys
	"galley_label": true,
	"galley_url":   true,
	// issue
	"volume":               true,
	"number":               true,
	"issue_title":          true,
	"issue_year":           true,
	"issue_date_published": true,
	// author
	"author_first_name":     true,
	"author_middle_name":    true,
	"author_last_name":      true,
	"author_email":          true,
	"author_institution":    true,
	"author_department":     true,
	"author_biography":      true,
	"author_orcid":          true,
	"author_corporate":      true,
	"author_correspondence": true,
}

// Source reads one CSV stream. Fetcher is optional; when set, galley URLs
// are retrieved so unreachable ones surface as attachment field errors.
type Source struct {
	reader  io.Reader
	fetcher *transport.Client
	logger  *slog.Logger

	rowErrs []*ingest.RecordError
}

// New creates a tabular source over r.
func New(r io.Reader, fetcher *transport.Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{reader: r, fetcher: fetcher, logger: logger}
}

// Tag implements ingest.Source.
func (s *Source) Tag() string { return Tag }

// RowErrors implements ingest.RowErrorSource: rows that failed during
// grouping, reported after Records returns.
func (s *Source) RowErrors() []*ingest.RecordError { return s.rowErrs }

// Records reads and groups the whole stream. Header problems are batch
// validation errors; nothing is emitted for a stream with a bad header.
func (s *Source) Records(ctx context.Context) ([]*ingest.RawRecord, error) {
	reader := csv.NewReader(s.reader)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.BatchValidation("empty input: no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeBatchValidation, "reading header row")
	}

	columns, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []ingest.TabularRow
	for index := 0; ; index++ {
		line, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken line (bare quote, etc.) fails that row only.
			s.rowErrs = append(s.rowErrs, ingest.NewRecordError(index, Tag, "group", "malformed CSV row", err))
			continue
		}
		rows = append(rows, s.parseRow(ctx, index, columns, line))
	}

	records, groupErrs := ingest.GroupRows(rows, Tag)
	s.rowErrs = append(s.rowErrs, groupErrs...)
	return records, nil
}

// parseHeader validates the header row against the recognized set and maps
// column names to their positions.
func parseHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF") // BOM from spreadsheet exports
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return nil, errors.BatchValidationf("blank header in column %d", i+1)
		}
		if !recognizedColumns[name] {
			return nil, errors.BatchValidationf("unrecognized header %q in column %d", name, i+1)
		}
		if _, dup := columns[name]; dup {
			return nil, errors.BatchValidationf("duplicate header %q", name)
		}
		columns[name] = i
	}
	if _, ok := columns["title"]; !ok {
		return nil, errors.BatchValidation("missing required header \"title\"")
	}
	return columns, nil
}

// parseRow splits one CSV line into its article and author halves.
func (s *Source) parseRow(ctx context.Context, index int, columns map[string]int, line []string) ingest.TabularRow {
	cell := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(line) {
			return ""
		}
		return line[i]
	}

	record := &ingest.RawRecord{
		InternalID:         cell("internal_id"),
		DOI:                cell("doi"),
		SourceID:           cell("source_id"),
		Title:              joinTitle(cell("title_prefix"), cell("title"), cell("subtitle")),
		Abstract:           cell("abstract"),
		Language:           cell("language"),
		SectionName:        cell("section_name"),
		SectionCode:        cell("section_code"),
		Stage:              cell("stage"),
		Keywords:           cell("keywords"),
		DateSubmitted:      cell("date_submitted"),
		DateAccepted:       cell("date_accepted"),
		DatePublished:      cell("date_published"),
		Volume:             cell("volume"),
		Number:             cell("number"),
		IssueTitle:         cell("issue_title"),
		IssueDatePublished: cell("issue_date_published"),
	}
	if record.IssueDatePublished == "" {
		if year := strings.TrimSpace(cell("issue_year")); year != "" {
			record.IssueDatePublished = year + "-01-01"
		}
	}

	if url := strings.TrimSpace(cell("galley_url")); url != "" {
		record.Attachments = append(record.Attachments, s.fetchGalley(ctx, cell("galley_label"), url))
	}

	author := &ingest.RawAuthor{
		FirstName:      cell("author_first_name"),
		MiddleName:     cell("author_middle_name"),
		LastName:       cell("author_last_name"),
		Email:          cell("author_email"),
		Institution:    cell("author_institution"),
		Department:     cell("author_department"),
		Biography:      cell("author_biography"),
		ORCID:          cell("author_orcid"),
		Corporate:      cell("author_corporate"),
		Correspondence: cell("author_correspondence"),
	}

	return ingest.TabularRow{Index: index, Record: record, Author: author}
}

// fetchGalley retrieves a galley URL so a dead link is reported on the
// record. The payload itself is discarded: transcoding is out of scope.
func (s *Source) fetchGalley(ctx context.Context, label, url string) ingest.Attachment {
	name := strings.TrimSpace(label)
	if name == "" {
		name = url
	}
	att := ingest.Attachment{Name: name}
	if s.fetcher == nil {
		return att
	}
	if _, err := s.fetcher.Fetch(ctx, url); err != nil {
		att.Err = err
	}
	return att
}

func joinTitle(prefix, title, subtitle string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, title} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	joined := strings.Join(parts, " ")
	if sub := strings.TrimSpace(subtitle); sub != "" && joined != "" {
		joined += ": " + sub
	}
	return joined
}
