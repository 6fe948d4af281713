package evaluation

import (
	"math"
	"strings"

	"github.com/cryptofundraises/tracker/pkg/utils"
)

// AmountTolerance is the relative error under which two amounts are equal.
const AmountTolerance = 0.01

// RecallAtK computes Recall@K: the fraction of relevant items found in the top-K retrieved results.
// Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := make(map[string]struct{}, len(relevant))
	for _, r := range relevant {
		relevantSet[normalizeName(r)] = struct{}{}
	}

	topK := retrieved
	if k < len(topK) {
		topK = topK[:k]
	}

	found := 0
	for _, r := range topK {
		key := normalizeName(r)
		if _, ok := relevantSet[key]; ok {
			found++
			delete(relevantSet, key)
		}
	}

	return float64(found) / float64(len(relevant))
}

// InvestorRecall scores the extracted investor list. An empty expectation
// scores 1.0 only when nothing was extracted.
func InvestorRecall(expected, got []string) float64 {
	if len(expected) == 0 {
		if len(got) == 0 {
			return 1.0
		}
		return 0.0
	}
	return RecallAtK(expected, got, len(got))
}

// AmountMatches compares a raw extracted amount against the labeled USD value.
func AmountMatches(expected *float64, raw string) bool {
	got := utils.NormalizeAmount(raw)
	if expected == nil || got == nil {
		return expected == nil && got == nil
	}
	if *expected == 0 {
		return *got == 0
	}
	return math.Abs(*got-*expected)/math.Abs(*expected) <= AmountTolerance
}

// NameMatches compares names ignoring case, surrounding space and a
// leading @.
func NameMatches(expected, got string) bool {
	return normalizeName(expected) == normalizeName(got)
}

func normalizeName(s string) string {
	return strings.ToLower(utils.StripHandle(strings.TrimSpace(s)))
}
