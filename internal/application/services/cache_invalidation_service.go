package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/rs/zerolog/log"
)

// CacheInvalidationService drops cached fundraise reads when a change
// event arrives, including events published by other processes.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	return &CacheInvalidationService{cache: cache, eventBus: eventBus}
}

// Start subscribes to fundraise updates and invalidates in the background
// until ctx is done or Stop is called.
func (s *CacheInvalidationService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	events, err := s.eventBus.Subscribe(ctx, providers.EventChannelFundraiseUpdates)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to fundraise updates: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	go s.consume(ctx, events)

	log.Info().Str("channel", providers.EventChannelFundraiseUpdates).Msg("cache invalidation started")
	return nil
}

// Stop cancels the subscription and waits for the consumer to exit
func (s *CacheInvalidationService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	log.Info().Msg("cache invalidation stopped")
}

func (s *CacheInvalidationService) consume(ctx context.Context, events <-chan *entities.FundraiseEvent) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.FundraiseEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateFundraise(ctx, event.Slug); err != nil {
		log.Warn().Err(err).
			Str("event_id", event.ID).
			Str("fundraise_id", event.FundraiseID).
			Msg("failed to invalidate fundraise cache")
		return
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("fundraise_id", event.FundraiseID).
		Str("event_type", string(event.EventType)).
		Msg("invalidated fundraise cache")
}

// InvalidateFundraise drops the detail entry for slug and every cached list.
// Lists are always dropped since any write can change ordering and totals.
func (s *CacheInvalidationService) InvalidateFundraise(ctx context.Context, slug string) error {
	if slug != "" {
		if err := s.cache.Delete(ctx, providers.FundraiseSlugCacheKey(slug)); err != nil {
			return fmt.Errorf("failed to invalidate fundraise %s: %w", slug, err)
		}
	}
	return s.InvalidateLists(ctx)
}

// InvalidateLists drops every cached list query
func (s *CacheInvalidationService) InvalidateLists(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, providers.FundraiseListCachePattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", providers.FundraiseListCachePattern, err)
	}
	return nil
}
