package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/cryptofundraises/tracker/pkg/config"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// ErrUnauthorized is returned when the API rejects the configured key.
var ErrUnauthorized = errors.New("openai: unauthorized")

// Client implements the fundraise extraction provider on the Responses API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

var _ providers.FundraiseExtractionProvider = (*Client)(nil)

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig, timeout time.Duration) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutput struct {
	Content []responseContent `json:"content"`
}

type responseEnvelope struct {
	Output     []responseOutput `json:"output"`
	OutputText string           `json:"output_text"`
}

// fundraiseFormat constrains the Responses API output to the extraction
// payload. Strict mode requires every property to be listed as required, so
// optional facts are typed as nullable instead.
var fundraiseFormat = map[string]interface{}{
	"type":   "json_schema",
	"name":   "fundraise",
	"strict": true,
	"schema": map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"amount_raised", "investors", "lead_investor", "round_type", "token", "description"},
		"properties": map[string]interface{}{
			"amount_raised": nullableString(),
			"investors": map[string]interface{}{
				"type":  "array",
				"items": map[string]string{"type": "string"},
			},
			"lead_investor": nullableString(),
			"round_type":    nullableString(),
			"token":         nullableString(),
			"description":   map[string]string{"type": "string"},
		},
	},
}

func nullableString() map[string]interface{} {
	return map[string]interface{}{"type": []string{"string", "null"}}
}

// ExtractFundraise asks the model for the structured facts in text.
func (c *Client) ExtractFundraise(ctx context.Context, text string) (guess *entities.ExtractionGuess, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("announcement text is required")
	}

	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			observability.RecordLLMRequest(ctx, providerName, c.model, 0, 0, err)
			return nil, err
		}
		observability.RecordLLMRateLimitWait(ctx, providerName, c.model, time.Since(waitStart))
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": c.model,
		"input": []map[string]string{
			{"role": "system", "content": FundraiseSystemPrompt},
			{"role": "user", "content": BuildFundraiseUserPrompt(text)},
		},
		"text":              map[string]interface{}{"format": fundraiseFormat},
		"temperature":       0.1,
		"max_output_tokens": 500,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	status := 0
	defer func() {
		observability.RecordLLMRequest(ctx, providerName, c.model, status, time.Since(start), err)
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: request failed with status %d", ErrUnauthorized, status)
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("openai request failed with status %d", status)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}

	output := envelope.text()
	if output == "" {
		return nil, errors.New("openai response missing output text")
	}
	return ParseFundraisePayload([]byte(output))
}

func (e *responseEnvelope) text() string {
	for _, out := range e.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				return content.Text
			}
		}
	}
	return e.OutputText
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}
