package entities

// ExtractionGuess is the structured best guess produced from free text.
// AmountRaisedRaw keeps the human formatting ("10M") for the amount
// normalizer.
type ExtractionGuess struct {
	AmountRaisedRaw string   `json:"amount_raised"`
	Investors       []string `json:"investors"`
	LeadInvestor    string   `json:"lead_investor"`
	RoundType       string   `json:"round_type"`
	Token           string   `json:"token"`
	Description     string   `json:"description"`
}

// FallbackGuess is returned whenever extraction fails: no fundraising
// facts and the original content as description.
func FallbackGuess(content string) ExtractionGuess {
	return ExtractionGuess{
		Investors:   []string{},
		Description: content,
	}
}
