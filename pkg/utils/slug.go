package utils

import (
	"fmt"
	"strings"
	"time"
)

const unknownProjectSlug = "unknown-project"

// GenerateSlug builds the human-readable secondary key for a record:
// the collapsed project name followed by the year and month it was
// announced. A nil announcedAt falls back to importedAt.
func GenerateSlug(projectName string, announcedAt *time.Time, importedAt time.Time) string {
	name := NormalizeIdentifier(projectName, '-')
	if name == "" {
		name = unknownProjectSlug
	}

	at := importedAt
	if announcedAt != nil {
		at = *announcedAt
	}
	at = at.UTC()

	return fmt.Sprintf("%s-%04d-%02d", name, at.Year(), int(at.Month()))
}

// NormalizeIdentifier lowercases value and replaces every run of characters
// outside [a-z0-9] with sep, trimming sep from both ends.
func NormalizeIdentifier(value string, sep rune) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	lastSep := false

	for _, ch := range trimmed {
		isAlphaNum := (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
		if isAlphaNum {
			b.WriteRune(ch)
			lastSep = false
		} else if !lastSep {
			b.WriteRune(sep)
			lastSep = true
		}
	}

	return strings.Trim(b.String(), string(sep))
}
