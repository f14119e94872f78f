package ingest

import "testing"

func primaryRow(index int, title string, author *RawAuthor) TabularRow {
	return TabularRow{Index: index, Record: &RawRecord{Title: title}, Author: author}
}

func continuationRow(index int, author *RawAuthor) TabularRow {
	return TabularRow{Index: index, Record: &RawRecord{}, Author: author}
}

func TestGroupRowsMultiAuthorRecord(t *testing.T) {
	rows := []TabularRow{
		primaryRow(0, "First article", &RawAuthor{LastName: "Adeyemi"}),
		continuationRow(1, &RawAuthor{LastName: "Brandt"}),
		continuationRow(2, &RawAuthor{LastName: "Costa"}),
		primaryRow(3, "Second article", &RawAuthor{LastName: "Diallo"}),
	}

	records, recordErrs := GroupRows(rows, "tabular")
	if len(recordErrs) != 0 {
		t.Fatalf("unexpected record errors: %v", recordErrs)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(records[0].Authors) != 3 {
		t.Errorf("first record: got %d authors, want 3", len(records[0].Authors))
	}
	if records[0].Row != 0 || records[1].Row != 3 {
		t.Errorf("primary row numbers: got %d and %d", records[0].Row, records[1].Row)
	}
	if len(records[1].Authors) != 1 {
		t.Errorf("second record: got %d authors, want 1", len(records[1].Authors))
	}
}

func TestGroupRowsOrphanContinuationFailsRow(t *testing.T) {
	rows := []TabularRow{
		continuationRow(0, &RawAuthor{LastName: "Orphan"}),
		primaryRow(1, "Valid article", &RawAuthor{LastName: "Adeyemi"}),
	}

	records, recordErrs := GroupRows(rows, "tabular")
	if len(recordErrs) != 1 {
		t.Fatalf("expected 1 record error, got %d", len(recordErrs))
	}
	if recordErrs[0].Row != 0 || recordErrs[0].Stage != "group" {
		t.Errorf("got row=%d stage=%s", recordErrs[0].Row, recordErrs[0].Stage)
	}
	if len(records) != 1 {
		t.Fatalf("batch should continue: expected 1 record, got %d", len(records))
	}
}

func TestGroupRowsCorporateContinuation(t *testing.T) {
	rows := []TabularRow{
		primaryRow(0, "Report", &RawAuthor{LastName: "Editor"}),
		continuationRow(1, &RawAuthor{Institution: "World Health Organization", Corporate: "1"}),
	}

	records, recordErrs := GroupRows(rows, "tabular")
	if len(recordErrs) != 0 {
		t.Fatalf("unexpected record errors: %v", recordErrs)
	}
	if len(records[0].Authors) != 2 {
		t.Fatalf("got %d authors, want 2", len(records[0].Authors))
	}
	if records[0].Authors[1].Institution != "World Health Organization" {
		t.Errorf("got %q", records[0].Authors[1].Institution)
	}
}

func TestGroupRowsEmptyRowInsideRunFailsRow(t *testing.T) {
	rows := []TabularRow{
		primaryRow(0, "Article", &RawAuthor{LastName: "Adeyemi"}),
		continuationRow(1, &RawAuthor{}),
	}

	records, recordErrs := GroupRows(rows, "tabular")
	if len(recordErrs) != 1 {
		t.Fatalf("expected 1 record error, got %d", len(recordErrs))
	}
	if len(records[0].Authors) != 1 {
		t.Errorf("empty row must not extend the byline: got %d authors", len(records[0].Authors))
	}
}

func TestGroupRowsLocalizedTitleIsPrimary(t *testing.T) {
	rows := []TabularRow{
		{Index: 0, Record: &RawRecord{LocalizedTitle: map[string]string{"en": "Localized only"}}},
	}

	records, recordErrs := GroupRows(rows, "tabular")
	if len(recordErrs) != 0 {
		t.Fatalf("unexpected record errors: %v", recordErrs)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}
