package domain

import "time"

// Article is a publication record. At most one article per DOI per journal,
// and at most one per source-native ID per journal.
type Article struct {
	ID        string `json:"id"`
	JournalID string `json:"journal_id"`

	// Identity keys. Either may be empty; both are scoped to the journal.
	DOI      string `json:"doi,omitempty"`
	SourceID string `json:"source_id,omitempty"` // source-native numeric/string ID

	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Language string   `json:"language,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	SectionID string `json:"section_id,omitempty"`
	IssueID   string `json:"issue_id,omitempty"`
	Stage     string `json:"stage,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasKeyword reports whether the article already carries the keyword.
func (a *Article) HasKeyword(kw string) bool {
	for _, k := range a.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}
