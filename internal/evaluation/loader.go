package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadGoldenAnnouncements reads and parses a golden set from a JSON file.
func LoadGoldenAnnouncements(path string) ([]GoldenAnnouncement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden announcements file: %w", err)
	}

	var items []GoldenAnnouncement
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse golden announcements: %w", err)
	}

	return items, nil
}

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// ValidateGoldenAnnouncements checks that all golden items have required fields and valid values.
func ValidateGoldenAnnouncements(items []GoldenAnnouncement) error {
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("announcement at index %d: missing id", i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("announcement at index %d: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = struct{}{}

		if strings.TrimSpace(item.Text) == "" {
			return fmt.Errorf("announcement %q: missing text", item.ID)
		}
		if item.ExpectedAmountUSD != nil && *item.ExpectedAmountUSD < 0 {
			return fmt.Errorf("announcement %q: negative expected amount", item.ID)
		}
		if !validDifficulties[item.Difficulty] {
			return fmt.Errorf("announcement %q: invalid difficulty %q (must be easy/medium/hard)", item.ID, item.Difficulty)
		}
	}

	return nil
}
