package services

import (
	"context"
	"fmt"

	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/rs/zerolog/log"
)

const defaultReindexPageSize = 200

// ReindexSummary reports what a full reindex did.
type ReindexSummary struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// SearchReindexService rebuilds the search index from the record store
type SearchReindexService struct {
	repo     repositories.FundraiseRepository
	search   repositories.FundraiseSearchRepository
	pageSize int
}

// NewSearchReindexService creates a reindexer. pageSize <= 0 uses the default.
func NewSearchReindexService(repo repositories.FundraiseRepository, search repositories.FundraiseSearchRepository, pageSize int) *SearchReindexService {
	if pageSize <= 0 {
		pageSize = defaultReindexPageSize
	}
	return &SearchReindexService{repo: repo, search: search, pageSize: pageSize}
}

// Reindex pages through every stored record and upserts it into the index.
// A record that fails to index is counted and skipped; a store error aborts.
func (s *SearchReindexService) Reindex(ctx context.Context) (*ReindexSummary, error) {
	summary := &ReindexSummary{}
	filter := repositories.FundraiseFilter{
		SortBy: repositories.SortByProcessedAt,
		Limit:  s.pageSize,
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		page, err := s.repo.List(ctx, filter)
		if err != nil {
			return summary, fmt.Errorf("failed to list fundraises at offset %d: %w", filter.Offset, err)
		}

		for _, record := range page {
			if record == nil {
				continue
			}
			if err := s.search.Index(ctx, record); err != nil {
				log.Warn().Err(err).Str("id", record.ID).Msg("failed to index fundraise")
				summary.Failed++
				continue
			}
			summary.Indexed++
		}

		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}

	log.Info().Int("indexed", summary.Indexed).Int("failed", summary.Failed).Msg("search reindex complete")
	return summary, nil
}
