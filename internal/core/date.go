package core

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used for storage, sorting and filtering.
const DateLayout = "2006-01-02"

// Accepted input layouts, most specific first.
var dateLayouts = []string{
	DateLayout,
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate parses an ISO date, tolerating unpadded month/day and full timestamps.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// MonthKey returns the YYYY-MM bucket of an ISO date, or "" when it cannot be parsed.
func MonthKey(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return ""
	}
	return t.Format("2006-01")
}

// Today returns the current local date in ISO form.
func Today() string {
	return time.Now().Format(DateLayout)
}
