package domain

import (
	"strings"
	"time"
)

// Section is unique per (journal, name). Source-specific section or type
// codes are mapped onto sections by the crosswalk table.
type Section struct {
	ID        string    `json:"id"`
	JournalID string    `json:"journal_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SectionKey builds the store index key for a section's (journal, name) pair.
// Names are matched exactly but case-insensitively.
func SectionKey(journalID, name string) string {
	return journalID + "/" + strings.ToLower(strings.TrimSpace(name))
}

// Key returns the section's own index key.
func (s *Section) Key() string {
	return SectionKey(s.JournalID, s.Name)
}
