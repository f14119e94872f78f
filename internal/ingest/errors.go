package ingest

import "fmt"

// FieldError reports a problem with one field on one record. Field errors
// are non-fatal: the field takes its zero value and the record continues.
type FieldError struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("field %s: %s (value %q)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// RecordError fails a whole record. The batch continues with the next one.
type RecordError struct {
	Row       int    `json:"row"` // 0-based data row, -1 when not row-oriented
	SourceTag string `json:"source_tag"`
	Stage     string `json:"stage"` // pipeline stage that failed: normalize, group, resolve, merge, commit
	Reason    string `json:"reason"`
	cause     error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("record at row %d (%s, %s): %s: %v", e.Row, e.SourceTag, e.Stage, e.Reason, e.cause)
	}
	return fmt.Sprintf("record at row %d (%s, %s): %s", e.Row, e.SourceTag, e.Stage, e.Reason)
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error { return e.cause }

// NewRecordError builds a record failure attributed to one pipeline stage.
func NewRecordError(row int, sourceTag, stage, reason string, cause error) *RecordError {
	return &RecordError{Row: row, SourceTag: sourceTag, Stage: stage, Reason: reason, cause: cause}
}
