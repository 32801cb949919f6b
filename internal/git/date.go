package git

import (
	"fmt"
	"strings"
	"time"
)

// gitDateLayout matches the %ai and %ci placeholders.
const gitDateLayout = "2006-01-02 15:04:05 -0700"

// UTCLayout is the ISO-8601-like layout used for every date leaving the
// package, e.g. 2024-03-12T09:30:00+0000.
const UTCLayout = "2006-01-02T15:04:05-0700"

// ParseDate parses a git timestamp and normalizes it to UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	t, err := time.Parse(gitDateLayout, value)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, value); err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
		}
	}
	return t.UTC(), nil
}

// FormatUTC renders t in UTC using UTCLayout.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(UTCLayout)
}
