package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// gvizDateRe matches the serialized formula cells Google's visualization API
// returns for date-typed columns: Date(2024,0,15) or Date(2024,0,15,13,30,0).
// The month is zero-based.
var gvizDateRe = regexp.MustCompile(`^Date\((\d+),(\d+),(\d+)(?:,(\d+),(\d+),(\d+))?\)$`)

// stringLayouts are tried in order for date-ish strings.
var stringLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseTime converts epoch numbers, date-ish strings, spreadsheet formula
// cells and native time values into a UTC time. The bool is false for
// anything unparsable; callers treat that as "no date", never as an error.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case int:
		return fromEpoch(int64(t))
	case int64:
		return fromEpoch(t)
	case float64:
		return fromEpoch(int64(t))
	case string:
		return parseTimeString(t)
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := gvizDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		var hour, minute, sec int
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
			sec, _ = strconv.Atoi(m[6])
		}
		return time.Date(year, time.Month(month+1), day, hour, minute, sec, 0, time.UTC), true
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n)
	}

	for _, layout := range stringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// fromEpoch interprets values above 1e12 as milliseconds; affiliate APIs mix
// second and millisecond timestamps freely.
func fromEpoch(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
