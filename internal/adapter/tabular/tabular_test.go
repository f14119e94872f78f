package tabular

import (
	"context"
	"strings"
	"testing"

	"github.com/folioapp/folio-ingest/internal/errors"
)

const validCSV = `title,doi,stage,author_last_name,author_email,volume,number
First article,10.1/a,published,Adeyemi,a@example.org,3,1
,,,Brandt,b@example.org,,
Second article,10.1/b,review,Costa,c@example.org,3,1
`

func TestRecordsGroupsAuthorRuns(t *testing.T) {
	src := New(strings.NewReader(validCSV), nil, nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.RowErrors()) != 0 {
		t.Fatalf("unexpected row errors: %v", src.RowErrors())
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(records[0].Authors) != 2 {
		t.Errorf("first record: got %d authors, want 2", len(records[0].Authors))
	}
	if records[0].Row != 0 || records[1].Row != 2 {
		t.Errorf("primary rows: got %d and %d", records[0].Row, records[1].Row)
	}
	if records[0].Volume != "3" {
		t.Errorf("got volume %q", records[0].Volume)
	}
	if records[0].SourceTag != Tag {
		t.Errorf("got source tag %q", records[0].SourceTag)
	}
}

func TestRecordsRejectsUnknownHeader(t *testing.T) {
	src := New(strings.NewReader("title,favourite_colour\nA,blue\n"), nil, nil)

	_, err := src.Records(context.Background())
	if err == nil {
		t.Fatal("expected batch validation error")
	}
	if !errors.Is(err, errors.ErrBatchValidation) {
		t.Errorf("got %v", err)
	}
	if !strings.Contains(err.Error(), "favourite_colour") {
		t.Errorf("error should name the header: %v", err)
	}
}

func TestRecordsRejectsMissingTitleColumn(t *testing.T) {
	src := New(strings.NewReader("doi,stage\n10.1/a,published\n"), nil, nil)

	_, err := src.Records(context.Background())
	if !errors.Is(err, errors.ErrBatchValidation) {
		t.Errorf("got %v", err)
	}
}

func TestRecordsToleratesBOM(t *testing.T) {
	src := New(strings.NewReader("\uFEFFtitle,doi\nBOM article,10.1/a\n"), nil, nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Title != "BOM article" {
		t.Fatalf("got %+v", records)
	}
}

func TestRecordsOrphanContinuationReportedAsRowError(t *testing.T) {
	csv := "title,author_last_name\n,Orphan\nValid article,Adeyemi\n"
	src := New(strings.NewReader(csv), nil, nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rowErrs := src.RowErrors()
	if len(rowErrs) != 1 || rowErrs[0].Row != 0 {
		t.Fatalf("expected row error for row 0, got %v", rowErrs)
	}
}

func TestRecordsTitlePrefixAndSubtitleJoined(t *testing.T) {
	csv := "title_prefix,title,subtitle\nThe,Great Survey,a retrospective\n"
	src := New(strings.NewReader(csv), nil, nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := records[0].Title; got != "The Great Survey: a retrospective" {
		t.Errorf("got %q", got)
	}
}

func TestRecordsIssueYearFallback(t *testing.T) {
	csv := "title,issue_year\nDated article,2019\n"
	src := New(strings.NewReader(csv), nil, nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := records[0].IssueDatePublished; got != "2019-01-01" {
		t.Errorf("got %q", got)
	}
}

func TestRecordsGalleyWithoutFetcherKeepsName(t *testing.T) {
	csv := "title,galley_label,galley_url\nArticle,PDF,https://example.org/galley.pdf\n"
	src := New(strings.NewReader(csv), nil, nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	atts := records[0].Attachments
	if len(atts) != 1 || atts[0].Name != "PDF" || atts[0].Err != nil {
		t.Fatalf("got %+v", atts)
	}
}

func TestRecordsEmptyInputIsBatchError(t *testing.T) {
	src := New(strings.NewReader(""), nil, nil)

	_, err := src.Records(context.Background())
	if !errors.Is(err, errors.ErrBatchValidation) {
		t.Errorf("got %v", err)
	}
}
