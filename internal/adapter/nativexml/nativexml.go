// Package nativexml reads the <issues>/<issue>/<article> XML dialect:
// typed child elements, locale-attributed text, dates as separate
// day/month/year attributes. Input may arrive in legacy encodings; decoding
// is charset-aware.
package nativexml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/ingest"
)

// Tag identifies this adapter in error attribution.
const Tag = "nativexml"

type xmlDate struct {
	Day   int `xml:"day,attr"`
	Month int `xml:"month,attr"`
	Year  int `xml:"year,attr"`
}

// String renders the parts as a parseable date. Missing day and month
// default to 1; a missing year means no date at all.
func (d *xmlDate) String() string {
	if d == nil || d.Year == 0 {
		return ""
	}
	month, day := d.Month, d.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, month, day)
}

type xmlID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlLocalized struct {
	Locale string `xml:"locale,attr"`
	Value  string `xml:",chardata"`
}

type xmlSection struct {
	Code string `xml:"code,attr"`
	Name string `xml:",chardata"`
}

type xmlAuthor struct {
	Corporate      bool           `xml:"corporate,attr"`
	PrimaryContact bool           `xml:"primary_contact,attr"`
	FirstName      string         `xml:"firstname"`
	MiddleName     string         `xml:"middlename"`
	LastName       string         `xml:"lastname"`
	Email          string         `xml:"email"`
	Affiliation    string         `xml:"affiliation"`
	Department     string         `xml:"department"`
	ORCID          string         `xml:"orcid"`
	Biographies    []xmlLocalized `xml:"biography"`
}

type xmlArticle struct {
	Stage         string         `xml:"stage,attr"`
	Language      string         `xml:"language,attr"`
	IDs           []xmlID        `xml:"id"`
	Titles        []xmlLocalized `xml:"title"`
	Abstracts     []xmlLocalized `xml:"abstract"`
	Section       xmlSection     `xml:"section"`
	Keywords      string         `xml:"keywords"`
	DateSubmitted *xmlDate       `xml:"date_submitted"`
	DateAccepted  *xmlDate       `xml:"date_accepted"`
	DatePublished *xmlDate       `xml:"date_published"`
	Authors       []xmlAuthor    `xml:"author"`
}

type xmlIssue struct {
	Volume        string       `xml:"volume,attr"`
	Number        string       `xml:"number,attr"`
	Title         string       `xml:"title"`
	DatePublished *xmlDate     `xml:"date_published"`
	Articles      []xmlArticle `xml:"article"`
}

type xmlRoot struct {
	XMLName  xml.Name     `xml:"issues"`
	Issues   []xmlIssue   `xml:"issue"`
	Articles []xmlArticle `xml:"article"` // standalone, outside any issue
}

// Source reads one XML document.
type Source struct {
	reader io.Reader
	logger *slog.Logger
}

// New creates a nativexml source over r.
func New(r io.Reader, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{reader: r, logger: logger}
}

// Tag implements ingest.Source.
func (s *Source) Tag() string { return Tag }

// Records decodes the whole document. The dialect is a single document, so
// a malformed one is a batch validation error: there is no safe way to skip
// a broken element mid-tree.
func (s *Source) Records(ctx context.Context) ([]*ingest.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(s.reader)
	decoder.CharsetReader = charset.NewReaderLabel

	var root xmlRoot
	if err := decoder.Decode(&root); err != nil {
		return nil, errors.Wrap(err, errors.CodeBatchValidation, "decoding XML document")
	}

	var records []*ingest.RawRecord
	index := 0
	for i := range root.Issues {
		issue := &root.Issues[i]
		for j := range issue.Articles {
			records = append(records, toRaw(&issue.Articles[j], issue, index))
			index++
		}
	}
	for i := range root.Articles {
		records = append(records, toRaw(&root.Articles[i], nil, index))
		index++
	}
	return records, nil
}

// toRaw flattens one article element, inheriting issue metadata from its
// enclosing issue. index is the article's document-order position, used as
// the row for attribution.
func toRaw(article *xmlArticle, issue *xmlIssue, index int) *ingest.RawRecord {
	raw := &ingest.RawRecord{
		SourceTag:     Tag,
		Row:           index,
		Stage:         article.Stage,
		Language:      article.Language,
		SectionName:   strings.TrimSpace(article.Section.Name),
		SectionCode:   article.Section.Code,
		Keywords:      article.Keywords,
		DateSubmitted: article.DateSubmitted.String(),
		DateAccepted:  article.DateAccepted.String(),
		DatePublished: article.DatePublished.String(),
	}

	for _, id := range article.IDs {
		switch strings.ToLower(id.Type) {
		case "internal":
			raw.InternalID = strings.TrimSpace(id.Value)
		case "doi":
			raw.DOI = strings.TrimSpace(id.Value)
		default:
			raw.SourceID = strings.TrimSpace(id.Value)
		}
	}

	raw.Title, raw.LocalizedTitle = splitLocalized(article.Titles)
	raw.Abstract, raw.LocalizedAbstract = splitLocalized(article.Abstracts)

	if issue != nil {
		raw.Volume = issue.Volume
		raw.Number = issue.Number
		raw.IssueTitle = strings.TrimSpace(issue.Title)
		raw.IssueDatePublished = issue.DatePublished.String()
	}

	for _, a := range article.Authors {
		bio, bioLocalized := splitLocalized(a.Biographies)
		raw.Authors = append(raw.Authors, ingest.RawAuthor{
			FirstName:          a.FirstName,
			MiddleName:         a.MiddleName,
			LastName:           a.LastName,
			Email:              a.Email,
			Institution:        a.Affiliation,
			Department:         a.Department,
			Biography:          bio,
			LocalizedBiography: bioLocalized,
			ORCID:              a.ORCID,
			Corporate:          boolFlag(a.Corporate),
			Correspondence:     boolFlag(a.PrimaryContact),
		})
	}

	return raw
}

// splitLocalized separates locale-attributed elements from the bare one.
func splitLocalized(elements []xmlLocalized) (scalar string, localized map[string]string) {
	for _, e := range elements {
		value := strings.TrimSpace(e.Value)
		if e.Locale == "" {
			scalar = value
			continue
		}
		if localized == nil {
			localized = make(map[string]string, len(elements))
		}
		localized[e.Locale] = value
	}
	return scalar, localized
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return ""
}
