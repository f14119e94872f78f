// Package wire reads submissions from the remote JSON API. Every
// human-readable field arrives as a locale-keyed map; the normalizer
// delocalizes them downstream. Pages are fetched through the rate-limited
// transport client.
package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/folioapp/folio-ingest/internal/ingest"
	"github.com/folioapp/folio-ingest/internal/transport"
	"github.com/folioapp/folio-ingest/internal/validation"
)

// Tag identifies this adapter in error attribution.
const Tag = "wire"

type wireGalley struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type wireAuthor struct {
	GivenName      map[string]string `json:"given_name"`
	FamilyName     map[string]string `json:"family_name"`
	Email          string            `json:"email"`
	Affiliation    map[string]string `json:"affiliation"`
	Biography      map[string]string `json:"biography"`
	ORCID          string            `json:"orcid"`
	Corporate      bool              `json:"is_corporate"`
	Correspondence bool              `json:"is_correspondence"`
	Sequence       int               `json:"seq"`
}

type wireIssue struct {
	Volume        json.Number       `json:"volume"`
	Number        json.Number       `json:"number"`
	Title         map[string]string `json:"title"`
	DatePublished string            `json:"date_published"`
}

// wireRecord is one submission as the API serves it.
type wireRecord struct {
	ID            json.Number       `json:"id" validate:"required"`
	DOI           string            `json:"doi"`
	Title         map[string]string `json:"title" validate:"required"`
	Abstract      map[string]string `json:"abstract"`
	Locale        string            `json:"locale"`
	SectionCode   string            `json:"section_ref"`
	Stage         string            `json:"stage"`
	Keywords      []string          `json:"keywords"`
	DateSubmitted string            `json:"date_submitted"`
	DateAccepted  string            `json:"date_accepted"`
	DatePublished string            `json:"date_published"`
	Issue         *wireIssue        `json:"issue"`
	Authors       []wireAuthor      `json:"authors"`
	Galleys       []wireGalley      `json:"galleys"`
}

type wirePage struct {
	Items    []wireRecord `json:"items"`
	NextPage int          `json:"next_page"`
}

// Source pulls one journal's submissions from the API.
type Source struct {
	client      *transport.Client
	baseURL     string
	journalPath string
	validator   *validation.Validator
	logger      *slog.Logger

	// fetchGalleys controls whether galley URLs are retrieved so dead links
	// surface as attachment errors.
	fetchGalleys bool

	rowErrs []*ingest.RecordError
}

// New creates a wire source for one journal.
func New(client *transport.Client, baseURL, journalPath string, fetchGalleys bool, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		journalPath:  journalPath,
		validator:    validation.New(),
		fetchGalleys: fetchGalleys,
		logger:       logger,
	}
}

// Tag implements ingest.Source.
func (s *Source) Tag() string { return Tag }

// RowErrors implements ingest.RowErrorSource: items the API served that
// failed DTO validation.
func (s *Source) RowErrors() []*ingest.RecordError { return s.rowErrs }

// Records pages through the journal's submissions. A page fetch failure is
// fatal for the batch: the enumeration itself is broken, and nothing has
// been written yet. A single invalid item fails that item only.
func (s *Source) Records(ctx context.Context) ([]*ingest.RawRecord, error) {
	var records []*ingest.RawRecord

	index := 0
	for page := 1; page > 0; {
		pageURL := fmt.Sprintf("%s/journals/%s/submissions?page=%d",
			s.baseURL, url.PathEscape(s.journalPath), page)

		var body wirePage
		if err := s.client.FetchJSON(ctx, pageURL, &body); err != nil {
			return nil, err
		}
		s.logger.Debug("fetched submissions page", "page", page, "items", len(body.Items))

		for i := range body.Items {
			item := &body.Items[i]
			if err := s.validator.Validate(item); err != nil {
				s.rowErrs = append(s.rowErrs, ingest.NewRecordError(index, Tag, "group", "invalid API item", err))
				index++
				continue
			}
			records = append(records, s.toRaw(ctx, item, index))
			index++
		}

		page = body.NextPage
	}

	return records, nil
}

func (s *Source) toRaw(ctx context.Context, item *wireRecord, index int) *ingest.RawRecord {
	raw := &ingest.RawRecord{
		SourceTag:         Tag,
		Row:               index,
		SourceID:          item.ID.String(),
		DOI:               item.DOI,
		LocalizedTitle:    item.Title,
		LocalizedAbstract: item.Abstract,
		Language:          item.Locale,
		SectionCode:       item.SectionCode,
		Stage:             item.Stage,
		Keywords:          strings.Join(item.Keywords, "; "),
		DateSubmitted:     item.DateSubmitted,
		DateAccepted:      item.DateAccepted,
		DatePublished:     item.DatePublished,
	}

	if item.Issue != nil {
		raw.Volume = item.Issue.Volume.String()
		raw.Number = item.Issue.Number.String()
		raw.IssueTitle = anyLocale(item.Issue.Title)
		raw.IssueDatePublished = item.Issue.DatePublished
	}

	// Byline order follows the API's seq field, not array order; downstream
	// sequence numbers derive from the order here.
	sort.SliceStable(item.Authors, func(i, j int) bool {
		return item.Authors[i].Sequence < item.Authors[j].Sequence
	})
	for _, a := range item.Authors {
		raw.Authors = append(raw.Authors, ingest.RawAuthor{
			FirstName:          anyLocale(a.GivenName),
			LastName:           anyLocale(a.FamilyName),
			Email:              a.Email,
			Institution:        anyLocale(a.Affiliation),
			LocalizedBiography: a.Biography,
			ORCID:              a.ORCID,
			Corporate:          boolFlag(a.Corporate),
			Correspondence:     boolFlag(a.Correspondence),
		})
	}

	for _, galley := range item.Galleys {
		att := ingest.Attachment{Name: galley.Label}
		if att.Name == "" {
			att.Name = galley.URL
		}
		if s.fetchGalleys && galley.URL != "" {
			if _, err := s.client.Fetch(ctx, galley.URL); err != nil {
				att.Err = err
			}
		}
		raw.Attachments = append(raw.Attachments, att)
	}

	return raw
}

// anyLocale picks a value from a locale map when the caller needs a scalar
// the normalizer won't delocalize itself. Prefers "en", else the
// lexicographically first locale for determinism.
func anyLocale(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	if v, ok := m["en"]; ok && v != "" {
		return v
	}
	best := ""
	for locale := range m {
		if best == "" || locale < best {
			if m[locale] != "" {
				best = locale
			}
		}
	}
	return m[best]
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return ""
}
