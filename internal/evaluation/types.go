package evaluation

import "time"

// Field names scored by the evaluation.
const (
	FieldAmount       = "amount"
	FieldLeadInvestor = "lead_investor"
	FieldRoundType    = "round_type"
	FieldToken        = "token"
	FieldInvestors    = "investors"
)

// ScoredFields lists every field in report order.
func ScoredFields() []string {
	return []string{FieldAmount, FieldLeadInvestor, FieldRoundType, FieldToken, FieldInvestors}
}

// GoldenAnnouncement is a labeled announcement with the fields a correct
// extraction should produce. Empty expectations mean the field must come
// back empty.
type GoldenAnnouncement struct {
	ID                string   `json:"id"`
	Text              string   `json:"text"`
	ExpectedAmountUSD *float64 `json:"expected_amount_usd"`
	ExpectedLead      string   `json:"expected_lead_investor"`
	ExpectedRound     string   `json:"expected_round_type"`
	ExpectedToken     string   `json:"expected_token"`
	ExpectedInvestors []string `json:"expected_investors"`
	Difficulty        string   `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the outcome for a single announcement.
type EvalResult struct {
	ID             string          `json:"id"`
	Difficulty     string          `json:"difficulty"`
	Matched        map[string]bool `json:"matched"`
	InvestorRecall float64         `json:"investor_recall"`
	FellBack       bool            `json:"fell_back"`
	Latency        time.Duration   `json:"latency"`
}

// ExactMatch reports whether every scored field matched.
func (r EvalResult) ExactMatch() bool {
	for _, field := range ScoredFields() {
		if !r.Matched[field] {
			return false
		}
	}
	return true
}

// EvalSummary holds aggregate metrics across all golden announcements.
type EvalSummary struct {
	Total             int                           `json:"total"`
	FieldAccuracy     map[string]float64            `json:"field_accuracy"`
	AvgInvestorRecall float64                       `json:"avg_investor_recall"`
	ExactMatchRate    float64                       `json:"exact_match_rate"`
	FallbackRate      float64                       `json:"fallback_rate"`
	AvgLatency        time.Duration                 `json:"avg_latency"`
	ByDifficulty      map[string]*DifficultySummary `json:"by_difficulty"`
	Results           []EvalResult                  `json:"results,omitempty"`
}

// DifficultySummary holds metrics grouped by difficulty.
type DifficultySummary struct {
	Count          int     `json:"count"`
	ExactMatchRate float64 `json:"exact_match_rate"`
}
