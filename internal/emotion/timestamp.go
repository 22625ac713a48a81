package emotion

import (
	"strings"
	"time"
)

// Rendered timestamps are UTC with a trailing Z. Sub-second precision is either absent or six digits.
const (
	TimestampLayout      = "2006-01-02T15:04:05Z"
	TimestampMicroLayout = "2006-01-02T15:04:05.000000Z"
)

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing Z or a numeric offset is honoured;
// timestamps without a zone are taken as UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	// RFC 3339 with a space separator
	if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ResolveTimestamp returns the parsed batch timestamp, or now when it cannot be parsed.
func ResolveTimestamp(s string, now func() time.Time) (time.Time, bool) {
	if t, ok := ParseTimestamp(s); ok {
		return t, true
	}
	return now().UTC(), false
}

// FormatTimestamp truncates to microseconds and prints the fraction only when it is non-zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(TimestampLayout)
	}
	return t.Format(TimestampMicroLayout)
}
