package ingest

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// CommittedRecord is one successfully written record's outcome. FieldErrors
// carry the non-fatal problems encountered on the way in.
type CommittedRecord struct {
	Row       int    `json:"row"`
	SourceTag string `json:"source_tag"`
	ArticleID string `json:"article_id"`
	Created   bool   `json:"created"`
	// Changes counts the fields the merge altered; 0 means the write was a
	// byline-only or no-op re-import.
	Changes     int          `json:"changes"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
}

// FailedRecord is one failed record's outcome, with enough context for an
// operator to regenerate a corrected input.
type FailedRecord struct {
	Row       int    `json:"row"`
	SourceTag string `json:"source_tag"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

// Report is the structured outcome of one batch.
type Report struct {
	BatchID   string            `json:"batch_id"`
	SourceTag string            `json:"source_tag"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Committed []CommittedRecord `json:"committed"`
	Failed    []FailedRecord    `json:"failed"`
}

func (r *Report) fail(recordErr *RecordError) {
	failed := FailedRecord{
		Row:       recordErr.Row,
		SourceTag: recordErr.SourceTag,
		Stage:     recordErr.Stage,
		Reason:    recordErr.Reason,
	}
	if cause := recordErr.Unwrap(); cause != nil {
		failed.Reason += ": " + cause.Error()
	}
	r.Failed = append(r.Failed, failed)
}

// Counts summarizes the report.
func (r *Report) Counts() (committed, failed int) {
	return len(r.Committed), len(r.Failed)
}

// FailedRowsCSV renders the failed entries as a correction file for tabular
// flows: one line per failed row, carrying the row number and reason, ready
// for operator fix-up and re-submission. Returns nil when nothing failed.
func (r *Report) FailedRowsCSV() ([]byte, error) {
	if len(r.Failed) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"row", "source", "stage", "reason"}); err != nil {
		return nil, err
	}
	for _, f := range r.Failed {
		record := []string{strconv.Itoa(f.Row), f.SourceTag, f.Stage, f.Reason}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
