package util

import (
	"strconv"
	"strings"
	"time"
)

// QueryTimeLayout is the layout the analytics service expects for start/end.
const QueryTimeLayout = "2006-01-02 15:04:05"

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	QueryTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// ParseTime tries RFC3339, RFC3339Nano, the upstream SQL layouts (UTC), and unix seconds or millis.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}

// UnixAuto interprets ts as milliseconds when it is too large to be seconds.
func UnixAuto(ts int64) time.Time {
	if ts > 1e11 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// FormatQueryTime renders t in the upstream query layout, in UTC.
func FormatQueryTime(t time.Time) string {
	return t.UTC().Format(QueryTimeLayout)
}
