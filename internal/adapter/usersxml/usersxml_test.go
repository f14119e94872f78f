package usersxml

import (
	"context"
	"strings"
	"testing"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<users>
  <user>
    <username>aadeyemi</username>
    <email>a@example.org</email>
    <firstname>Ada</firstname>
    <lastname>Adeyemi</lastname>
    <affiliation>Example University</affiliation>
    <submission stage="submission">
      <id type="native">n-1</id>
      <title>First submission</title>
      <abstract>About soil.</abstract>
      <section_ref>ART</section_ref>
      <date_submitted>2021-03-01</date_submitted>
      <file name="manuscript.pdf" encoding="base64">aGVsbG8gd29ybGQ=</file>
      <file name="figures.zip" encoding="base64">!!!not-base64!!!</file>
    </submission>
    <submission stage="review">
      <title>Second submission</title>
    </submission>
  </user>
</users>
`

func TestRecordsOneRecordPerSubmission(t *testing.T) {
	src := New(strings.NewReader(sampleXML), nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Title != "First submission" || first.SourceID != "n-1" {
		t.Errorf("got %+v", first)
	}
	if len(first.Authors) != 1 {
		t.Fatalf("got %d authors", len(first.Authors))
	}
	author := first.Authors[0]
	if author.Email != "a@example.org" || author.Correspondence != "true" {
		t.Errorf("submitting user must be the contact author: %+v", author)
	}

	second := records[1]
	if second.Stage != "review" || second.Row != 1 {
		t.Errorf("got %+v", second)
	}
	if second.Authors[0].LastName != "Adeyemi" {
		t.Error("user profile must carry to every submission")
	}
}

func TestRecordsPayloadErrors(t *testing.T) {
	src := New(strings.NewReader(sampleXML), nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	atts := records[0].Attachments
	if len(atts) != 2 {
		t.Fatalf("got %d attachments", len(atts))
	}
	if atts[0].Name != "manuscript.pdf" || atts[0].Err != nil {
		t.Errorf("valid payload must carry no error: %+v", atts[0])
	}
	if atts[1].Err == nil {
		t.Error("invalid base64 must be reported")
	}
}

func TestRecordsUnsupportedEncodingReported(t *testing.T) {
	xml := `<users><user><email>a@example.org</email><lastname>A</lastname>
	<submission><title>T</title><file name="f.bin" encoding="uuencode">x</file></submission></user></users>`
	src := New(strings.NewReader(xml), nil)

	records, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Attachments[0].Err == nil {
		t.Error("unsupported encoding must be reported")
	}
}
