package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
)

// FundraiseSystemPrompt instructs the model to extract fundraising facts as JSON.
const FundraiseSystemPrompt = `You are a precise fundraising data extractor. Extract fundraising details from crypto announcements and return ONLY valid JSON.

1. amount_raised:
- Look for numbers followed by M, MM, million, B, billion, or USD
- Convert written numbers to digits ("ten million" -> "10M")
- For ranges, use the higher number ("8-10M" -> "10M")
- Keep the original formatting ("10M", "1.5B", "500K")
- Return null if no amount is mentioned

2. investors:
- Extract ALL mentioned investors, lead and participating
- Remove @ symbols and clean up names ("XYZ Capital", not "@XYZcap")

3. lead_investor:
- Look for phrases like "led by", "spearheaded by", "led investment"
- Return null if no clear lead is mentioned

4. round_type:
- One of: Pre-seed, Seed, Series A, Series B, Series C, Series D, Strategic, Private, Public
- Return null if unclear

Return a JSON object with these fields:
{
  "amount_raised": string|null,
  "investors": string[],
  "lead_investor": string|null,
  "round_type": string|null,
  "token": string|null,
  "description": string (clean one or two sentence description of the raise)
}`

// BuildFundraiseUserPrompt renders the announcement text for the model.
func BuildFundraiseUserPrompt(text string) string {
	return "Announcement: " + text
}

type fundraisePayload struct {
	AmountRaised json.RawMessage `json:"amount_raised"`
	Investors    json.RawMessage `json:"investors"`
	LeadInvestor *string         `json:"lead_investor"`
	RoundType    *string         `json:"round_type"`
	Token        *string         `json:"token"`
	Description  *string         `json:"description"`
}

// ParseFundraisePayload decodes model output into a guess. Markdown code
// fences around the JSON are tolerated. The amount may come back as a string
// or a bare number; anything else for investors reads as no investors.
func ParseFundraisePayload(data []byte) (*entities.ExtractionGuess, error) {
	cleaned := stripCodeFence(string(data))

	var payload fundraisePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extraction payload: %w", err)
	}

	guess := &entities.ExtractionGuess{
		AmountRaisedRaw: rawAmount(payload.AmountRaised),
		Investors:       stringList(payload.Investors),
		LeadInvestor:    deref(payload.LeadInvestor),
		RoundType:       deref(payload.RoundType),
		Token:           deref(payload.Token),
		Description:     deref(payload.Description),
	}
	return guess, nil
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func rawAmount(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func stringList(raw json.RawMessage) []string {
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []string{}
	}
	return items
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
