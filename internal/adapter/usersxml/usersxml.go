// Package usersxml reads the per-user XML dialect: each user element carries
// profile fields plus submission elements with embedded base64 file
// payloads. The submitting user is the record's correspondence author.
package usersxml

import (
	"context"
	"encoding/base64"
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
const Tag = "usersxml"

// maxPayloadBytes bounds one decoded embedded file. Payload content is
// discarded either way; the bound only keeps a corrupt export from
// ballooning memory during the decode check.
const maxPayloadBytes = 32 << 20

type xmlFile struct {
	Name     string `xml:"name,attr"`
	Encoding string `xml:"encoding,attr"`
	Data     string `xml:",chardata"`
}

type xmlID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlSubmission struct {
	Stage         string    `xml:"stage,attr"`
	Language      string    `xml:"language,attr"`
	IDs           []xmlID   `xml:"id"`
	Title         string    `xml:"title"`
	Abstract      string    `xml:"abstract"`
	SectionCode   string    `xml:"section_ref"`
	Keywords      string    `xml:"keywords"`
	DateSubmitted string    `xml:"date_submitted"`
	Files         []xmlFile `xml:"file"`
}

type xmlUser struct {
	Username    string          `xml:"username"`
	Email       string          `xml:"email"`
	FirstName   string          `xml:"firstname"`
	MiddleName  string          `xml:"middlename"`
	LastName    string          `xml:"lastname"`
	Affiliation string          `xml:"affiliation"`
	ORCID       string          `xml:"orcid"`
	Biography   string          `xml:"biography"`
	Submissions []xmlSubmission `xml:"submission"`
}

type xmlRoot struct {
	XMLName xml.Name  `xml:"users"`
	Users   []xmlUser `xml:"user"`
}

// Source reads one users XML document.
type Source struct {
	reader io.Reader
	logger *slog.Logger
}

// New creates a usersxml source over r.
func New(r io.Reader, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{reader: r, logger: logger}
}

// Tag implements ingest.Source.
func (s *Source) Tag() string { return Tag }

// Records decodes the whole document, one record per submission. Embedded
// payloads are base64-checked; an undecodable one becomes an attachment
// error on its record, never a record abort.
func (s *Source) Records(ctx context.Context) ([]*ingest.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(s.reader)
	decoder.CharsetReader = charset.NewReaderLabel

	var root xmlRoot
	if err := decoder.Decode(&root); err != nil {
		return nil, errors.Wrap(err, errors.CodeBatchValidation, "decoding users XML document")
	}

	var records []*ingest.RawRecord
	index := 0
	for i := range root.Users {
		user := &root.Users[i]
		for j := range user.Submissions {
			records = append(records, toRaw(user, &user.Submissions[j], index))
			index++
		}
	}
	return records, nil
}

func toRaw(user *xmlUser, sub *xmlSubmission, index int) *ingest.RawRecord {
	raw := &ingest.RawRecord{
		SourceTag:     Tag,
		Row:           index,
		Title:         strings.TrimSpace(sub.Title),
		Abstract:      strings.TrimSpace(sub.Abstract),
		Language:      sub.Language,
		SectionCode:   strings.TrimSpace(sub.SectionCode),
		Stage:         sub.Stage,
		Keywords:      sub.Keywords,
		DateSubmitted: strings.TrimSpace(sub.DateSubmitted),
		Authors: []ingest.RawAuthor{{
			FirstName:      user.FirstName,
			MiddleName:     user.MiddleName,
			LastName:       user.LastName,
			Email:          user.Email,
			Institution:    user.Affiliation,
			Biography:      user.Biography,
			ORCID:          user.ORCID,
			Correspondence: "true", // the submitting user is the contact
		}},
	}

	for _, id := range sub.IDs {
		switch strings.ToLower(id.Type) {
		case "internal":
			raw.InternalID = strings.TrimSpace(id.Value)
		case "doi":
			raw.DOI = strings.TrimSpace(id.Value)
		default:
			raw.SourceID = strings.TrimSpace(id.Value)
		}
	}

	for _, file := range sub.Files {
		raw.Attachments = append(raw.Attachments, checkPayload(file))
	}

	return raw
}

// checkPayload validates an embedded file payload without keeping its
// content: transcoding is out of scope, but an operator should learn about
// a corrupt galley from the batch report.
func checkPayload(file xmlFile) ingest.Attachment {
	att := ingest.Attachment{Name: file.Name}
	if att.Name == "" {
		att.Name = "unnamed"
	}

	if enc := strings.ToLower(strings.TrimSpace(file.Encoding)); enc != "" && enc != "base64" {
		att.Err = fmt.Errorf("unsupported payload encoding %q", file.Encoding)
		return att
	}

	data := strings.Map(dropSpace, file.Data)
	if data == "" {
		att.Err = fmt.Errorf("empty payload")
		return att
	}
	if decodedLen := base64.StdEncoding.DecodedLen(len(data)); decodedLen > maxPayloadBytes {
		att.Err = fmt.Errorf("payload exceeds %d bytes", maxPayloadBytes)
		return att
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		att.Err = fmt.Errorf("invalid base64 payload: %v", err)
	}
	return att
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\r':
		return -1
	}
	return r
}
