package utils

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonNumericRe     = regexp.MustCompile(`[^0-9.]`)
	leadingFloatRe   = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
	textAmountRe     = regexp.MustCompile(`(?i)(\d+(\.\d+)?)\s*(million|m|b|billion)`)
	rangeSeparatorRe = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
	rangeNumberRe    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	unitSuffixRe     = regexp.MustCompile(`(?i)(k|mm|m|b|bn|million|billion)\s*$`)
)

// NormalizeAmount converts a loosely formatted amount ("$10M", "1.5B",
// "2,500,000") into whole US dollars. It returns nil when nothing parseable
// remains.
//
// Only the b and m markers scale the value. "500K" therefore yields 500:
// the K suffix falls through to digit stripping. Callers that know better
// should expand thousands before calling.
func NormalizeAmount(raw string) *float64 {
	if raw == "" {
		return nil
	}
	s := strings.ToLower(raw)

	switch {
	case strings.Contains(s, "b"):
		return scaled(s, 1e9)
	case strings.Contains(s, "m"):
		return scaled(s, 1e6)
	}

	cleaned := nonNumericRe.ReplaceAllString(s, "")
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		cleaned = cleaned[:i+1] + strings.ReplaceAll(cleaned[i+1:], ".", "")
	}
	v, ok := parseLeadingFloat(cleaned)
	if !ok {
		return nil
	}
	return &v
}

// NormalizeAmountValue accepts the shapes amounts arrive in from JSON
// (numbers, numeric strings, json.Number) and normalizes them.
func NormalizeAmountValue(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return NormalizeAmount(t)
	case json.Number:
		return NormalizeAmount(t.String())
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return finite(float64(t))
	case int64:
		return finite(float64(t))
	case *float64:
		if t == nil {
			return nil
		}
		return finite(*t)
	default:
		return nil
	}
}

// FormatAmount renders a normalized amount as a bare number so it can be fed
// back through NormalizeAmount unchanged.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExtractAmountFromText finds the first "<number> million|m|b|billion"
// phrase in free text, e.g. "raised 12.5 million" -> "12.5 million".
func ExtractAmountFromText(text string) string {
	return textAmountRe.FindString(text)
}

// ResolveAmountRange picks the higher bound of a range expression, carrying
// the unit suffix over: "8-10M" -> "10M", "$5M to $3M" -> "$5M".
// Non-range input is returned unchanged.
func ResolveAmountRange(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parts := rangeSeparatorRe.Split(trimmed, -1)
	if len(parts) != 2 {
		return raw
	}
	low, high := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	lowNum, okLow := firstNumber(low)
	highNum, okHigh := firstNumber(high)
	if !okLow || !okHigh {
		return raw
	}

	chosen, other := high, low
	if lowNum > highNum {
		chosen, other = low, high
	}
	if unitSuffixRe.FindString(chosen) == "" {
		chosen += unitSuffixRe.FindString(other)
	}
	return chosen
}

func scaled(s string, factor float64) *float64 {
	v, ok := parseLeadingFloat(nonNumericRe.ReplaceAllString(s, ""))
	if !ok {
		return nil
	}
	v *= factor
	return &v
}

// parseLeadingFloat parses the longest numeric prefix, so "1.5.2" reads as 1.5.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloatRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func firstNumber(s string) (float64, bool) {
	m := rangeNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}
