package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/rs/zerolog/log"
)

// CacheWarmingService keeps the most requested reads (ticker and first list
// page) warm by running them through the caching repository.
type CacheWarmingService struct {
	repo repositories.FundraiseRepository
}

// NewCacheWarmingService creates a new cache warming service. repo should be
// the caching repository so that reads populate the cache.
func NewCacheWarmingService(repo repositories.FundraiseRepository) *CacheWarmingService {
	return &CacheWarmingService{repo: repo}
}

// WarmCache runs the hot reads once
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	if _, err := s.repo.List(ctx, repositories.TickerFilter(repositories.DefaultTickerLimit)); err != nil {
		return fmt.Errorf("failed to warm ticker: %w", err)
	}

	first := repositories.DefaultFundraiseFilter()
	if _, err := s.repo.List(ctx, first); err != nil {
		return fmt.Errorf("failed to warm fundraise list: %w", err)
	}
	if _, err := s.repo.Count(ctx, first); err != nil {
		return fmt.Errorf("failed to warm fundraise count: %w", err)
	}

	log.Debug().Msg("cache warmed")
	return nil
}

// StartPeriodicWarming warms the cache immediately and then on every tick
// until ctx is cancelled
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.WarmCache(ctx); err != nil {
				log.Warn().Err(err).Msg("cache warming failed")
			}
		}
	}
}
