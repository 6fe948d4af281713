package evaluation

import (
	"context"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
)

// Extractor is the extraction step under evaluation.
type Extractor interface {
	Extract(ctx context.Context, text string) (entities.ExtractionGuess, bool)
}

// Runner runs evaluation across a set of golden announcements.
type Runner struct {
	extractor Extractor
	now       func() time.Time
}

func NewRunner(extractor Extractor) *Runner {
	return &Runner{extractor: extractor, now: time.Now}
}

func (r *Runner) Run(ctx context.Context, items []GoldenAnnouncement) (*EvalSummary, error) {
	summary := &EvalSummary{
		FieldAccuracy: make(map[string]float64),
		ByDifficulty:  make(map[string]*DifficultySummary),
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := r.now()
		guess, ok := r.extractor.Extract(ctx, item.Text)
		result := Score(item, guess)
		result.FellBack = !ok
		result.Latency = r.now().Sub(start)

		summary.Results = append(summary.Results, result)
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

// Score compares one extraction against its labels.
func Score(item GoldenAnnouncement, guess entities.ExtractionGuess) EvalResult {
	recall := InvestorRecall(item.ExpectedInvestors, guess.Investors)
	return EvalResult{
		ID:         item.ID,
		Difficulty: item.Difficulty,
		Matched: map[string]bool{
			FieldAmount:       AmountMatches(item.ExpectedAmountUSD, guess.AmountRaisedRaw),
			FieldLeadInvestor: NameMatches(item.ExpectedLead, guess.LeadInvestor),
			FieldRoundType:    NameMatches(item.ExpectedRound, guess.RoundType),
			FieldToken:        NameMatches(item.ExpectedToken, guess.Token),
			FieldInvestors:    recall == 1.0,
		},
		InvestorRecall: recall,
	}
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.Total++
	for field, ok := range res.Matched {
		if ok {
			s.FieldAccuracy[field]++
		}
	}
	s.AvgInvestorRecall += res.InvestorRecall
	s.AvgLatency += res.Latency
	if res.FellBack {
		s.FallbackRate++
	}

	ds, ok := s.ByDifficulty[res.Difficulty]
	if !ok {
		ds = &DifficultySummary{}
		s.ByDifficulty[res.Difficulty] = ds
	}
	ds.Count++
	if res.ExactMatch() {
		s.ExactMatchRate++
		ds.ExactMatchRate++
	}
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.Total > 0 {
		n := float64(s.Total)
		for field := range s.FieldAccuracy {
			s.FieldAccuracy[field] /= n
		}
		s.AvgInvestorRecall /= n
		s.ExactMatchRate /= n
		s.FallbackRate /= n
		s.AvgLatency /= time.Duration(s.Total)
	}
	for _, field := range ScoredFields() {
		if _, ok := s.FieldAccuracy[field]; !ok {
			s.FieldAccuracy[field] = 0
		}
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			ds.ExactMatchRate /= float64(ds.Count)
		}
	}
}
