package services

import (
	"context"
	"strings"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/pkg/utils"
	"github.com/rs/zerolog/log"
)

// FieldExtractor wraps an extraction provider with timeout handling and the
// provider-independent clean-up of its output. It never retries.
type FieldExtractor struct {
	provider   providers.FundraiseExtractionProvider
	timeout    time.Duration
	onFallback func()
}

// NewFieldExtractor creates a field extractor. A nil provider always falls back.
func NewFieldExtractor(provider providers.FundraiseExtractionProvider, timeout time.Duration) *FieldExtractor {
	return &FieldExtractor{provider: provider, timeout: timeout}
}

// OnFallback registers a hook invoked each time extraction falls back.
func (e *FieldExtractor) OnFallback(fn func()) {
	e.onFallback = fn
}

// Extract returns the best guess for text and whether it came from the
// provider. Any provider failure yields the fallback guess and false.
func (e *FieldExtractor) Extract(ctx context.Context, text string) (entities.ExtractionGuess, bool) {
	if e.provider == nil || strings.TrimSpace(text) == "" {
		return e.fallback(text), false
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	guess, err := e.provider.ExtractFundraise(ctx, text)
	if err != nil || guess == nil {
		log.Warn().Err(err).Msg("fundraise extraction failed, using fallback")
		return e.fallback(text), false
	}

	return postProcess(*guess, text), true
}

func (e *FieldExtractor) fallback(text string) entities.ExtractionGuess {
	if e.onFallback != nil {
		e.onFallback()
	}
	return entities.FallbackGuess(text)
}

// postProcess resolves amount ranges, recovers an amount from the
// description when the model gave none, and strips social handles.
func postProcess(guess entities.ExtractionGuess, text string) entities.ExtractionGuess {
	if strings.TrimSpace(guess.Description) == "" {
		guess.Description = text
	}

	guess.AmountRaisedRaw = utils.ResolveAmountRange(strings.TrimSpace(guess.AmountRaisedRaw))
	if guess.AmountRaisedRaw == "" || utils.NormalizeAmount(guess.AmountRaisedRaw) == nil {
		if found := utils.ExtractAmountFromText(guess.Description); found != "" {
			log.Debug().Str("amount", found).Msg("recovered amount from description")
			guess.AmountRaisedRaw = found
		}
	}

	guess.Investors = utils.CleanNames(guess.Investors)
	guess.LeadInvestor = utils.StripHandle(guess.LeadInvestor)
	guess.RoundType = strings.TrimSpace(guess.RoundType)
	guess.Token = strings.TrimSpace(guess.Token)
	return guess
}
