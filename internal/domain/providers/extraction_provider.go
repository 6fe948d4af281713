package providers

import (
	"context"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
)

// FundraiseExtractionProvider turns announcement text into a structured
// guess using a language model. Implementations return an error for
// transport failures and for output that does not parse.
type FundraiseExtractionProvider interface {
	ExtractFundraise(ctx context.Context, text string) (*entities.ExtractionGuess, error)
}
