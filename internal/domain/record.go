package domain

import (
	"strings"
	"time"
)

// IdentifierKind names one of the overlapping identity keys a source record
// may carry. Resolution precedence is internal > doi > source-native.
type IdentifierKind string

const (
	IdentifierInternal IdentifierKind = "internal_id"
	IdentifierDOI      IdentifierKind = "doi"
	IdentifierSource   IdentifierKind = "source_native_id"
)

// identifierRank orders identifier kinds by resolution precedence.
// Precedence is a data-declared property, not a chain of conditionals.
var identifierRank = map[IdentifierKind]int{
	IdentifierInternal: 0,
	IdentifierDOI:      1,
	IdentifierSource:   2,
}

// Identifier is one (kind, value) identity key on a record.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

// MetadataRecord is the canonical intermediate shape every source adapter
// normalizes into. It is built per input record, used once, and discarded.
type MetadataRecord struct {
	// Identifiers ordered by resolution precedence. Use SortIdentifiers
	// after populating out of order.
	Identifiers []Identifier `json:"identifiers,omitempty"`

	Title       string   `json:"title,omitempty"`
	Abstract    string   `json:"abstract,omitempty"`
	Language    string   `json:"language,omitempty"`
	SectionName string   `json:"section_name,omitempty"`
	SectionCode string   `json:"section_code,omitempty"` // source code for crosswalk lookup
	Keywords    []string `json:"keywords,omitempty"`     // set semantics, order not significant

	Dates    RecordDates      `json:"dates"`
	IssueRef *IssueRef        `json:"issue_ref,omitempty"`
	Authors  []AuthorFragment `json:"authors,omitempty"`

	// Stage is the symbolic workflow stage, validated against the
	// journal's whitelist before merge.
	Stage string `json:"stage,omitempty"`

	// SourceTag identifies the adapter that produced this record, for
	// error attribution.
	SourceTag string `json:"source_tag"`

	// Row is the 0-based data row of the record's primary row in tabular
	// sources (header excluded), -1 for non-row-oriented sources.
	Row int `json:"row"`
}

// RecordDates holds the workflow timestamps, each optional and UTC-normalized.
// Date-only source values are pinned to 12:00 UTC so rendering them in any
// offset cannot shift the calendar day.
type RecordDates struct {
	Submitted *time.Time `json:"submitted,omitempty"`
	Accepted  *time.Time `json:"accepted,omitempty"`
	Published *time.Time `json:"published,omitempty"`
}

// IssueRef is the issue metadata carried on an article record.
type IssueRef struct {
	Volume      int        `json:"volume"`
	Number      int        `json:"number"`
	Title       string     `json:"title,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// AuthorFragment is one author entry on a record, before identity resolution.
type AuthorFragment struct {
	FirstName        string `json:"first_name,omitempty"`
	MiddleName       string `json:"middle_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Email            string `json:"email,omitempty"`
	Institution      string `json:"institution,omitempty"`
	Department       string `json:"department,omitempty"`
	Biography        string `json:"biography,omitempty"`
	ORCID            string `json:"orcid,omitempty"`
	IsCorporate      bool   `json:"is_corporate"`
	IsCorrespondence bool   `json:"is_correspondence"`
	Sequence         int    `json:"sequence"`
}

// Identifier returns the value for the given kind, or "" if absent.
func (r *MetadataRecord) Identifier(kind IdentifierKind) string {
	for _, id := range r.Identifiers {
		if id.Kind == kind {
			return id.Value
		}
	}
	return ""
}

// AddIdentifier appends an identifier, skipping blank values, and keeps the
// list in precedence order.
func (r *MetadataRecord) AddIdentifier(kind IdentifierKind, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	r.Identifiers = append(r.Identifiers, Identifier{Kind: kind, Value: value})
	r.SortIdentifiers()
}

// SortIdentifiers orders the identifier list by resolution precedence.
// Stable insertion sort: lists hold at most three entries.
func (r *MetadataRecord) SortIdentifiers() {
	ids := r.Identifiers
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && identifierRank[ids[j].Kind] < identifierRank[ids[j-1].Kind] {
			ids[j], ids[j-1] = ids[j-1], ids[j]
			j--
		}
	}
}

// HasIssueMetadata reports whether the record carried any issue metadata.
func (r *MetadataRecord) HasIssueMetadata() bool {
	return r.IssueRef != nil
}

// IsBlank reports whether a scalar field value is absent for merge purposes.
// Whitespace-only strings count as absent.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
