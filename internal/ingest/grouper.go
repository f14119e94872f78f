package ingest

import "strings"

// groupState is the grouper's FSM state.
type groupState int

const (
	// expectPrimary: next row must start a record.
	expectPrimary groupState = iota
	// inAuthorRun: continuation rows extend the current record's byline.
	inAuthorRun
)

// TabularRow is one parsed data row from a row-oriented source, before
// grouping. A primary row carries article fields (non-blank title) and
// usually the first author; a continuation row carries only author fields.
type TabularRow struct {
	// Index is the 0-based data row number, header excluded.
	Index  int
	Record *RawRecord
	Author *RawAuthor
}

// isPrimary reports whether the row starts a new record. The discriminator
// is the title column: primary rows always carry one.
func (r *TabularRow) isPrimary() bool {
	return r.Record != nil && (strings.TrimSpace(r.Record.Title) != "" || len(r.Record.LocalizedTitle) > 0)
}

// hasAuthor reports whether the row carries a usable author entry.
func (r *TabularRow) hasAuthor() bool {
	return r.Author != nil && (strings.TrimSpace(r.Author.LastName) != "" || strings.TrimSpace(r.Author.Institution) != "")
}

// GroupRows folds flat tabular rows into multi-author records. A record is a
// primary row followed by zero or more continuation rows. A continuation row
// with no preceding primary is an orphan: it fails as its own row and the
// batch continues.
func GroupRows(rows []TabularRow, sourceTag string) ([]*RawRecord, []*RecordError) {
	var (
		records    []*RawRecord
		recordErrs []*RecordError
		current    *RawRecord
		state      = expectPrimary
	)

	for _, row := range rows {
		if row.isPrimary() {
			current = row.Record
			current.SourceTag = sourceTag
			current.Row = row.Index
			if row.hasAuthor() {
				current.Authors = append(current.Authors, *row.Author)
			}
			records = append(records, current)
			state = inAuthorRun
			continue
		}

		if state == expectPrimary || current == nil {
			recordErrs = append(recordErrs, NewRecordError(
				row.Index, sourceTag, "group",
				"author continuation row with no preceding article row", nil))
			continue
		}

		if row.hasAuthor() {
			current.Authors = append(current.Authors, *row.Author)
		} else {
			recordErrs = append(recordErrs, NewRecordError(
				row.Index, sourceTag, "group",
				"row carries neither article nor author fields", nil))
		}
	}

	return records, recordErrs
}
