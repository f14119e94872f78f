// Package jsondump reads newline-delimited JSON dumps: one record per line,
// line number doubling as the row for error attribution.
package jsondump

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/ingest"
)

// Tag identifies this adapter in error attribution.
const Tag = "jsondump"

// maxLineBytes bounds a single NDJSON line. Abstracts can be large but a
// multi-megabyte line is a corrupt dump, not data.
const maxLineBytes = 4 << 20

type dumpAuthor struct {
	FirstName      string            `json:"first_name"`
	MiddleName     string            `json:"middle_name"`
	LastName       string            `json:"last_name"`
	Email          string            `json:"email"`
	Institution    string            `json:"institution"`
	Department     string            `json:"department"`
	Biography      string            `json:"biography"`
	BiographyL10n  map[string]string `json:"biography_localized"`
	ORCID          string            `json:"orcid"`
	Corporate      bool              `json:"is_corporate"`
	Correspondence bool              `json:"is_correspondence"`
}

type dumpIssue struct {
	Volume        json.Number `json:"volume"`
	Number        json.Number `json:"number"`
	Title         string      `json:"title"`
	DatePublished string      `json:"date_published"`
}

type dumpRecord struct {
	InternalID    string            `json:"internal_id"`
	DOI           string            `json:"doi"`
	SourceID      string            `json:"source_id"`
	Title         string            `json:"title"`
	TitleL10n     map[string]string `json:"title_localized"`
	Abstract      string            `json:"abstract"`
	AbstractL10n  map[string]string `json:"abstract_localized"`
	Language      string            `json:"language"`
	SectionName   string            `json:"section_name"`
	SectionCode   string            `json:"section_code"`
	Stage         string            `json:"stage"`
	Keywords      []string          `json:"keywords"`
	DateSubmitted string            `json:"date_submitted"`
	DateAccepted  string            `json:"date_accepted"`
	DatePublished string            `json:"date_published"`
	Issue         *dumpIssue        `json:"issue"`
	Authors       []dumpAuthor      `json:"authors"`
}

// Source reads one NDJSON stream.
type Source struct {
	reader io.Reader
	logger *slog.Logger

	rowErrs []*ingest.RecordError
}

// New creates a jsondump source over r.
func New(r io.Reader, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{reader: r, logger: logger}
}

// Tag implements ingest.Source.
func (s *Source) Tag() string { return Tag }

// RowErrors implements ingest.RowErrorSource: lines that failed to decode.
func (s *Source) RowErrors() []*ingest.RecordError { return s.rowErrs }

// Records reads the whole stream. A bad line fails that line only.
func (s *Source) Records(ctx context.Context) ([]*ingest.RawRecord, error) {
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	var records []*ingest.RawRecord
	for line := 0; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var dump dumpRecord
		if err := json.Unmarshal([]byte(text), &dump); err != nil {
			s.rowErrs = append(s.rowErrs, ingest.NewRecordError(line, Tag, "group", "invalid JSON line", err))
			continue
		}
		records = append(records, dump.toRaw(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeBatchValidation, "reading dump stream")
	}
	return records, nil
}

func (d *dumpRecord) toRaw(line int) *ingest.RawRecord {
	raw := &ingest.RawRecord{
		SourceTag:         Tag,
		Row:               line,
		InternalID:        d.InternalID,
		DOI:               d.DOI,
		SourceID:          d.SourceID,
		Title:             d.Title,
		LocalizedTitle:    d.TitleL10n,
		Abstract:          d.Abstract,
		LocalizedAbstract: d.AbstractL10n,
		Language:          d.Language,
		SectionName:       d.SectionName,
		SectionCode:       d.SectionCode,
		Stage:             d.Stage,
		Keywords:          strings.Join(d.Keywords, "; "),
		DateSubmitted:     d.DateSubmitted,
		DateAccepted:      d.DateAccepted,
		DatePublished:     d.DatePublished,
	}
	if d.Issue != nil {
		raw.Volume = d.Issue.Volume.String()
		raw.Number = d.Issue.Number.String()
		raw.IssueTitle = d.Issue.Title
		raw.IssueDatePublished = d.Issue.DatePublished
	}
	for _, a := range d.Authors {
		raw.Authors = append(raw.Authors, ingest.RawAuthor{
			FirstName:          a.FirstName,
			MiddleName:         a.MiddleName,
			LastName:           a.LastName,
			Email:              a.Email,
			Institution:        a.Institution,
			Department:         a.Department,
			Biography:          a.Biography,
			LocalizedBiography: a.BiographyL10n,
			ORCID:              a.ORCID,
			Corporate:          boolFlag(a.Corporate),
			Correspondence:     boolFlag(a.Correspondence),
		})
	}
	return raw
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return ""
}
