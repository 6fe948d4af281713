package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/openai"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/cryptofundraises/tracker/pkg/config"
	"google.golang.org/genai"
)

// Client implements the fundraise extraction provider on the Gemini API,
// constraining output with a response schema.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ providers.FundraiseExtractionProvider = (*Client)(nil)

// Option customizes the underlying genai client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
	}
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg *config.GeminiConfig, timeout time.Duration, opts ...Option) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{client: client, model: model, timeout: timeout}, nil
}

type fundraiseResponse struct {
	AmountRaised *string  `json:"amount_raised"`
	Investors    []string `json:"investors"`
	LeadInvestor *string  `json:"lead_investor"`
	RoundType    *string  `json:"round_type"`
	Token        *string  `json:"token"`
	Description  *string  `json:"description"`
}

// ExtractFundraise asks the model for the structured facts in text.
func (c *Client) ExtractFundraise(ctx context.Context, text string) (guess *entities.ExtractionGuess, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("announcement text is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		observability.RecordLLMRequest(ctx, "gemini", c.model, 0, time.Since(start), err)
	}()

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{{Text: openai.BuildFundraiseUserPrompt(text)}},
			Role:  genai.RoleUser,
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: openai.FundraiseSystemPrompt}},
		},
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   fundraiseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	respText := resp.Text()
	if strings.TrimSpace(respText) == "" {
		return nil, errors.New("gemini response missing text")
	}

	var parsed fundraiseResponse
	if err := json.Unmarshal([]byte(respText), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gemini JSON response: %w", err)
	}

	investors := parsed.Investors
	if investors == nil {
		investors = []string{}
	}

	return &entities.ExtractionGuess{
		AmountRaisedRaw: deref(parsed.AmountRaised),
		Investors:       investors,
		LeadInvestor:    deref(parsed.LeadInvestor),
		RoundType:       deref(parsed.RoundType),
		Token:           deref(parsed.Token),
		Description:     deref(parsed.Description),
	}, nil
}

func fundraiseSchema() *genai.Schema {
	nullableString := func(description string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true), Description: description}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount_raised": nullableString("Amount in original formatting, e.g. 10M or 1.5B. Higher bound for ranges."),
			"investors": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "All investors mentioned, without @ symbols.",
			},
			"lead_investor": nullableString("The investor that led the round."),
			"round_type":    nullableString("Pre-seed, Seed, Series A-D, Strategic, Private or Public."),
			"token":         nullableString("Token ticker if one is mentioned."),
			"description":   {Type: genai.TypeString, Description: "Clean one or two sentence description."},
		},
		Required: []string{"investors", "description"},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
