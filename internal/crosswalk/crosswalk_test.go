package crosswalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTable = `
sections:
  - source: tabular
    code: ART
    value: Articles
  - code: REV
    value: Reviews
stages:
  - source: wire
    code: "5"
    value: Published
`

func TestParseAndLookup(t *testing.T) {
	table, err := Parse([]byte(testTable))
	require.NoError(t, err)

	name, ok := table.Section("tabular", "art")
	assert.True(t, ok)
	assert.Equal(t, "Articles", name)

	// Wildcard entry matches any source.
	name, ok = table.Section("jsondump", "REV")
	assert.True(t, ok)
	assert.Equal(t, "Reviews", name)

	stage, ok := table.Stage("wire", "5")
	assert.True(t, ok)
	assert.Equal(t, "published", stage, "stage symbols are lowercased")

	_, ok = table.Stage("tabular", "5")
	assert.False(t, ok, "source-scoped entry must not leak to other sources")
}

func TestUnknownCodeMisses(t *testing.T) {
	table, err := Parse([]byte(testTable))
	require.NoError(t, err)

	_, ok := table.Section("tabular", "UNKNOWN")
	assert.False(t, ok)
}

func TestZeroTableMapsNothing(t *testing.T) {
	var table Table
	_, ok := table.Section("tabular", "ART")
	assert.False(t, ok)
}

func TestParseRejectsIncompleteEntry(t *testing.T) {
	_, err := Parse([]byte("sections:\n  - code: ART\n"))
	require.Error(t, err)
}

func TestLoadEmptyPathYieldsEmptyTable(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	_, ok := table.Stage("wire", "5")
	assert.False(t, ok)
}
