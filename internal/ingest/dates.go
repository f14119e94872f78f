package ingest

import (
	"strings"
	"time"
)

// Accepted source date layouts, tried in order. Sources disagree on
// precision: CSV exports carry bare dates, the wire API carries RFC3339
// with offsets, older dumps carry space-separated datetimes.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

const dateOnlyLayout = "2006-01-02"

// parseDate parses a source date value into a UTC-normalized timestamp.
//
// Date-only values are pinned to 12:00 UTC: a bare date has no instant, and
// midnight would roll to the previous calendar day when rendered in any
// negative offset. Values with a time keep their instant and are converted
// to UTC.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(dateOnlyLayout, value); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC), true
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}
