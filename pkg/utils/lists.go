package utils

import (
	"strings"
	"time"
)

// SplitList splits a comma separated field, trimming entries and dropping
// blanks. An empty input yields an empty, non-nil slice.
func SplitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// StripHandle removes a leading @ from a social handle used as a name.
func StripHandle(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// CleanNames strips handles and drops blank entries, preserving order.
func CleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = StripHandle(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// OptionalString returns nil for blank input, otherwise a pointer to the
// trimmed value.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
	"Jan 2006",
}

// ParseDate accepts the date formats seen across feeds and CSV exports.
// Results are normalized to UTC. It returns nil when no layout matches.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
