package evaluation

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func amount(v float64) *float64 { return &v }

// --- RecallAtK tests ---

func TestRecallAtK_AllRelevantFound(t *testing.T) {
	got := RecallAtK([]string{"Paradigm", "a16z"}, []string{"a16z", "Paradigm", "Coinbase Ventures"}, 10)
	if !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestRecallAtK_SomeRelevantMissing(t *testing.T) {
	got := RecallAtK([]string{"a", "b", "c", "d"}, []string{"a", "b", "x"}, 10)
	// 2 of 4 relevant found
	if !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestRecallAtK_NoRelevantDocs(t *testing.T) {
	got := RecallAtK(nil, []string{"a"}, 10)
	if !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0, got %f", got)
	}
}

func TestRecallAtK_KSmallerThanRetrieved(t *testing.T) {
	got := RecallAtK([]string{"a", "b", "c"}, []string{"a", "b", "x", "y", "c"}, 3)
	if !almostEqual(got, 2.0/3.0) {
		t.Errorf("expected 0.667, got %f", got)
	}
}

func TestRecallAtK_IgnoresCaseHandlesAndRepeats(t *testing.T) {
	got := RecallAtK([]string{"Paradigm", "Delphi"}, []string{"@paradigm", "PARADIGM"}, 10)
	if !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
}

// --- InvestorRecall tests ---

func TestInvestorRecall_EmptyExpectation(t *testing.T) {
	if got := InvestorRecall(nil, nil); !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0 for nothing expected and nothing found, got %f", got)
	}
	if got := InvestorRecall(nil, []string{"Paradigm"}); !almostEqual(got, 0.0) {
		t.Errorf("expected 0.0 for spurious investors, got %f", got)
	}
}

func TestInvestorRecall_Partial(t *testing.T) {
	got := InvestorRecall([]string{"Paradigm", "Delphi"}, []string{"Delphi"})
	if !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5, got %f", got)
	}
}

// --- AmountMatches tests ---

func TestAmountMatches(t *testing.T) {
	cases := []struct {
		name     string
		expected *float64
		raw      string
		want     bool
	}{
		{"millions", amount(10_000_000), "10M", true},
		{"billions", amount(1_200_000_000), "$1.2B", true},
		{"within tolerance", amount(10_000_000), "10,050,000", true},
		{"outside tolerance", amount(10_000_000), "12M", false},
		{"both missing", nil, "", true},
		{"unexpected amount", nil, "5M", false},
		{"missing amount", amount(5_000_000), "undisclosed", false},
		{"zero", amount(0), "0", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AmountMatches(tc.expected, tc.raw); got != tc.want {
				t.Errorf("AmountMatches(%v, %q) = %v, want %v", tc.expected, tc.raw, got, tc.want)
			}
		})
	}
}

func TestNameMatches(t *testing.T) {
	if !NameMatches("Seed", " seed ") {
		t.Error("expected case-insensitive match")
	}
	if !NameMatches("Paradigm", "@Paradigm") {
		t.Error("expected handle to match name")
	}
	if !NameMatches("", "") {
		t.Error("expected empty to match empty")
	}
	if NameMatches("", "Series A") {
		t.Error("expected spurious value not to match")
	}
}
