package domain

import (
	"strings"
	"time"
)

// AuthorIdentity is the live profile of an individual author, unique per
// email (case-insensitive). Corporate bylines never resolve to an
// AuthorIdentity; they exist only as FrozenAuthor rows.
type AuthorIdentity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"` // stored lowercased
	FirstName   string    `json:"first_name,omitempty"`
	MiddleName  string    `json:"middle_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Institution string    `json:"institution,omitempty"`
	Department  string    `json:"department,omitempty"`
	Biography   string    `json:"biography,omitempty"`
	ORCID       string    `json:"orcid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName renders "First Middle Last" with absent parts skipped.
func (a *AuthorIdentity) FullName() string {
	return joinNameParts(a.FirstName, a.MiddleName, a.LastName)
}

// FrozenAuthor is an immutable snapshot of one author's contribution to one
// article, taken at import time. The live AuthorIdentity may change later;
// the frozen record keeps crediting the byline as it was.
type FrozenAuthor struct {
	ID        string `json:"id"`
	ArticleID string `json:"article_id"`
	// AuthorID links back to the live identity; empty for corporate bylines.
	AuthorID string `json:"author_id,omitempty"`

	FirstName        string `json:"first_name,omitempty"`
	MiddleName       string `json:"middle_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Email            string `json:"email,omitempty"`
	Institution      string `json:"institution,omitempty"`
	IsCorporate      bool   `json:"is_corporate"`
	IsCorrespondence bool   `json:"is_correspondence"`
	Sequence         int    `json:"sequence"`

	FrozenAt time.Time `json:"frozen_at"`
}

// ByLine renders the frozen byline: institution for corporate entries,
// the personal name otherwise.
func (f *FrozenAuthor) ByLine() string {
	if f.IsCorporate {
		return f.Institution
	}
	return joinNameParts(f.FirstName, f.MiddleName, f.LastName)
}

func joinNameParts(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
