package scheduling

import (
	"strings"
	"time"
)

// Canonical returns t as an absolute UTC instant at microsecond precision with
// the monotonic reading stripped. TIMESTAMPTZ keeps microseconds, so values
// compare the same way whether they came from the clock, a request or the
// database.
func Canonical(t time.Time) time.Time {
	return t.Round(0).UTC().Truncate(time.Microsecond)
}

// zonedLayouts cover ISO 8601 offsets written without a colon.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp accepts RFC3339 values with a zone offset and naive
// date-times without one. Naive values are taken to be UTC already.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, NewValidationError("timestamp is required")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Canonical(t), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return Canonical(t), nil
		}
	}
	return time.Time{}, NewValidationError("invalid timestamp %q", raw)
}
