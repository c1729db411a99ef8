package search

import (
	"fmt"
	"strconv"
	"time"
)

// Date bounds use the compact digit forms yyyy, yyyyMM, yyyyMMdd, yyyyMMddHH,
// yyyyMMddHHmm, yyyyMMddHHmmss and yyyyMMddHHmmssSSS, always in UTC.
var dateLayouts = map[int]string{
	4:  "2006",
	6:  "200601",
	8:  "20060102",
	10: "2006010215",
	12: "200601021504",
	14: "20060102150405",
}

// millisDigits is the length of the yyyyMMddHHmmssSSS form.
const millisDigits = 17

// ParseDateBound parses a compact date string to the instant it names.
func ParseDateBound(s string) (time.Time, error) {
	if !isDigits(s) {
		return time.Time{}, fmt.Errorf("unsupported date %q", s)
	}
	if len(s) == millisDigits {
		// layouts need a separator before fractional seconds
		t, err := time.ParseInLocation(dateLayouts[14], s[:14], time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		ms, err := strconv.Atoi(s[14:])
		if err != nil {
			return time.Time{}, err
		}
		return t.Add(time.Duration(ms) * time.Millisecond), nil
	}

	layout, ok := dateLayouts[len(s)]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported date %q", s)
	}
	return time.ParseInLocation(layout, s, time.UTC)
}

// dateBucket returns the half-open interval a compact date names as a single
// value: a year, a month, a day, or an hour for anything finer.
func dateBucket(s string) (start, end time.Time, err error) {
	start, err = ParseDateBound(s)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch len(s) {
	case 4:
		end = start.AddDate(1, 0, 0)
	case 6:
		end = start.AddDate(0, 1, 0)
	case 8:
		end = start.AddDate(0, 0, 1)
	default:
		start = start.Truncate(time.Hour)
		end = start.Add(time.Hour)
	}
	return start, end, nil
}

// FormatDateBound renders t in the hour-resolution form accepted by ParseDateBound.
func FormatDateBound(t time.Time) string {
	return t.UTC().Format(dateLayouts[10])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
