package domain

import (
	"fmt"
	"time"
)

// Issue is unique per (journal, volume, number). Absent volume/number parts
// are stored as 0 so unspecified issues stay sortable rather than null.
type Issue struct {
	ID          string     `json:"id"`
	JournalID   string     `json:"journal_id"`
	Volume      int        `json:"volume"`
	Number      int        `json:"number"`
	Title       string     `json:"title,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IssueKey builds the store index key for an issue's (journal, volume, number) triple.
func IssueKey(journalID string, volume, number int) string {
	return fmt.Sprintf("%s/%d/%d", journalID, volume, number)
}

// Key returns the issue's own index key.
func (i *Issue) Key() string {
	return IssueKey(i.JournalID, i.Volume, i.Number)
}
