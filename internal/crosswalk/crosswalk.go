// Package crosswalk maps source-specific section and stage codes onto the
// repository's canonical names. Tables are loaded once from YAML and are
// read-only afterwards.
package crosswalk

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/folioapp/folio-ingest/internal/errors"
)

// Entry maps one source code to a canonical value.
type Entry struct {
	Source string `yaml:"source"` // adapter tag; empty matches every source
	Code   string `yaml:"code"`
	Value  string `yaml:"value"`
}

type tableFile struct {
	Sections []Entry `yaml:"sections"`
	Stages   []Entry `yaml:"stages"`
}

// Table holds the section and stage crosswalks. The zero value is a valid
// empty table that maps nothing.
type Table struct {
	sections map[string]string
	stages   map[string]string
}

// Load reads a crosswalk table from a YAML file. An empty path yields an
// empty table.
func Load(path string) (*Table, error) {
	if path == "" {
		return &Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "reading crosswalk file %s", path)
	}
	return Parse(data)
}

// Parse builds a table from YAML content.
func Parse(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Validationf("invalid crosswalk YAML: %v", err)
	}

	t := &Table{
		sections: make(map[string]string, len(file.Sections)),
		stages:   make(map[string]string, len(file.Stages)),
	}
	for _, e := range file.Sections {
		if e.Code == "" || e.Value == "" {
			return nil, errors.Validationf("crosswalk section entry needs code and value")
		}
		t.sections[entryKey(e.Source, e.Code)] = e.Value
	}
	for _, e := range file.Stages {
		if e.Code == "" || e.Value == "" {
			return nil, errors.Validationf("crosswalk stage entry needs code and value")
		}
		t.stages[entryKey(e.Source, e.Code)] = strings.ToLower(e.Value)
	}
	return t, nil
}

// Section resolves a source section code to a canonical section name.
// Source-specific entries win over wildcard entries.
func (t *Table) Section(sourceTag, code string) (string, bool) {
	return t.lookup(t.sections, sourceTag, code)
}

// Stage resolves a source stage code to a canonical stage symbol.
func (t *Table) Stage(sourceTag, code string) (string, bool) {
	return t.lookup(t.stages, sourceTag, code)
}

func (t *Table) lookup(m map[string]string, sourceTag, code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" || m == nil {
		return "", false
	}
	if v, ok := m[entryKey(sourceTag, code)]; ok {
		return v, true
	}
	v, ok := m[entryKey("", code)]
	return v, ok
}

func entryKey(source, code string) string {
	return strings.ToLower(source) + "\x00" + strings.ToLower(strings.TrimSpace(code))
}
