// Package domain contains the core business entities for the folio-ingest publication repository.
package domain

import (
	"strings"
	"time"
)

// Journal is the scope for all identity resolution. Every article, issue,
// section and crosswalk entry belongs to exactly one journal.
type Journal struct {
	ID            string   `json:"id"`
	Path          string   `json:"path"` // URL path slug, unique
	Title         string   `json:"title"`
	DefaultLocale string   `json:"default_locale,omitempty"` // BCP-47, e.g. "en", "pt-BR"
	Stages        []string `json:"stages,omitempty"`         // workflow stage whitelist
	// EnabledSections enumerates the section names imports may reference.
	// Empty means the journal is open: unknown sections are created on
	// demand instead of rejected.
	EnabledSections []string  `json:"enabled_sections,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultStages is the stage whitelist applied when a journal declares none.
var DefaultStages = []string{"submission", "review", "copyediting", "production", "published"}

// StageWhitelist returns the journal's stage whitelist, falling back to the defaults.
func (j *Journal) StageWhitelist() []string {
	if len(j.Stages) > 0 {
		return j.Stages
	}
	return DefaultStages
}

// StageAllowed reports whether the stage symbol is in the journal's whitelist.
// Comparison is case-insensitive; stage symbols are stored lowercased.
func (j *Journal) StageAllowed(stage string) bool {
	stage = strings.ToLower(strings.TrimSpace(stage))
	for _, s := range j.StageWhitelist() {
		if s == stage {
			return true
		}
	}
	return false
}

// SectionAllowed reports whether imports may reference the section name.
// Comparison is case-insensitive. A journal with no enabled-sections
// enumeration accepts any name.
func (j *Journal) SectionAllowed(name string) bool {
	if len(j.EnabledSections) == 0 {
		return true
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range j.EnabledSections {
		if strings.ToLower(strings.TrimSpace(s)) == name {
			return true
		}
	}
	return false
}
