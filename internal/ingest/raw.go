package ingest

import "context"

// RawRecord is the loosely-typed shape adapters hand to the normalizer.
// All values are strings exactly as the source carried them; the normalizer
// owns parsing, locale selection and blank semantics.
type RawRecord struct {
	SourceTag string
	// Row is the 0-based data row of the record's primary row (header
	// excluded) for tabular sources, -1 otherwise.
	Row int

	InternalID string
	DOI        string
	SourceID   string

	Title       string
	Abstract    string
	Language    string
	SectionName string
	SectionCode string
	Stage       string
	Keywords    string // delimiter-separated; normalizer splits

	// Locale-keyed variants. When populated they take precedence over the
	// plain scalar, after delocalization against the journal locale.
	LocalizedTitle    map[string]string
	LocalizedAbstract map[string]string

	DateSubmitted string
	DateAccepted  string
	DatePublished string

	Volume             string
	Number             string
	IssueTitle         string
	IssueDatePublished string

	Authors []RawAuthor

	// Attachments are auxiliary payloads (galley files) carried by some
	// sources. Content handling is out of scope; failures to retrieve or
	// decode one surface as field errors without failing the record.
	Attachments []Attachment
}

// RawAuthor is one unparsed author entry.
type RawAuthor struct {
	FirstName          string
	MiddleName         string
	LastName           string
	Email              string
	Institution        string
	Department         string
	Biography          string
	LocalizedBiography map[string]string
	ORCID              string
	Corporate          string // raw boolean flag
	Correspondence     string // raw boolean flag
}

// Attachment is a named auxiliary payload reference.
type Attachment struct {
	Name string
	// Err records a retrieval or decode failure for this attachment.
	Err error
}

// HasIssue reports whether any issue metadata was present on the raw record.
func (r *RawRecord) HasIssue() bool {
	return r.Volume != "" || r.Number != "" || r.IssueTitle != "" || r.IssueDatePublished != ""
}

// Source is a stream of raw records from one external format.
type Source interface {
	// Tag identifies the adapter for error attribution.
	Tag() string
	// Records reads the whole source. A batch-level validation failure
	// (e.g. an unrecognized CSV header) returns a nil slice and an error;
	// per-record problems are carried on the records themselves.
	Records(ctx context.Context) ([]*RawRecord, error)
}
