package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/rs/zerolog/log"
)

// CachedFundraiseAdapter wraps a FundraiseRepository with read-through
// caching of detail and list reads
type CachedFundraiseAdapter struct {
	adapter repositories.FundraiseRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedFundraiseAdapter creates a new cached fundraise adapter. metrics may be nil.
func NewCachedFundraiseAdapter(adapter repositories.FundraiseRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.FundraiseRepository {
	return &CachedFundraiseAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// Cache TTLs (in seconds)
const (
	fundraiseBySlugTTL = 300
	fundraiseListTTL   = 120
)

type cachedList struct {
	Items []*entities.Fundraise `json:"items,omitempty"`
	Count int                   `json:"count"`
}

// listCacheKey hashes the filter so equal queries share an entry
func listCacheKey(kind string, filter repositories.FundraiseFilter) string {
	data, _ := json.Marshal(filter)
	sum := sha256.Sum256(append([]byte(kind+":"), data...))
	return providers.FundraiseListCacheKey(hex.EncodeToString(sum[:16]))
}

// GetBySlug retrieves a record by slug with caching
func (a *CachedFundraiseAdapter) GetBySlug(ctx context.Context, slug string) (*entities.Fundraise, error) {
	cacheKey := providers.FundraiseSlugCacheKey(slug)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var fundraise entities.Fundraise
		if err := json.Unmarshal(cached, &fundraise); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "fundraise:slug")
			return &fundraise, nil
		}
		log.Warn().Err(err).Str("slug", slug).Msg("failed to unmarshal cached fundraise")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "fundraise:slug")

	start := time.Now()
	fundraise, err := a.adapter.GetBySlug(ctx, slug)
	observability.RecordDBMetric(ctx, a.metrics, "fundraise.get_by_slug", time.Since(start))
	if err != nil {
		return nil, err
	}

	a.store(cacheKey, fundraise, fundraiseBySlugTTL)
	return fundraise, nil
}

// List retrieves records with caching
func (a *CachedFundraiseAdapter) List(ctx context.Context, filter repositories.FundraiseFilter) ([]*entities.Fundraise, error) {
	cacheKey := listCacheKey("list", filter)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var result cachedList
		if err := json.Unmarshal(cached, &result); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "fundraise:list")
			if result.Items == nil {
				result.Items = []*entities.Fundraise{}
			}
			return result.Items, nil
		}
	}
	observability.RecordCacheMiss(ctx, a.metrics, "fundraise:list")

	start := time.Now()
	items, err := a.adapter.List(ctx, filter)
	observability.RecordDBMetric(ctx, a.metrics, "fundraise.list", time.Since(start))
	if err != nil {
		return nil, err
	}

	a.store(cacheKey, cachedList{Items: items}, fundraiseListTTL)
	return items, nil
}

// Count counts records with caching
func (a *CachedFundraiseAdapter) Count(ctx context.Context, filter repositories.FundraiseFilter) (int, error) {
	filter.Limit, filter.Offset = 0, 0
	cacheKey := listCacheKey("count", filter)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var result cachedList
		if err := json.Unmarshal(cached, &result); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "fundraise:count")
			return result.Count, nil
		}
	}
	observability.RecordCacheMiss(ctx, a.metrics, "fundraise:count")

	start := time.Now()
	count, err := a.adapter.Count(ctx, filter)
	observability.RecordDBMetric(ctx, a.metrics, "fundraise.count", time.Since(start))
	if err != nil {
		return 0, err
	}

	a.store(cacheKey, cachedList{Count: count}, fundraiseListTTL)
	return count, nil
}

// Create inserts a record and drops cached lists
func (a *CachedFundraiseAdapter) Create(ctx context.Context, fundraise *entities.Fundraise) error {
	if err := a.adapter.Create(ctx, fundraise); err != nil {
		return err
	}
	a.invalidate(ctx, fundraise.Slug)
	return nil
}

// Update updates a record and drops its cached entries
func (a *CachedFundraiseAdapter) Update(ctx context.Context, fundraise *entities.Fundraise) error {
	if err := a.adapter.Update(ctx, fundraise); err != nil {
		return err
	}
	a.invalidate(ctx, fundraise.Slug)
	return nil
}

// The lookups below feed the write path and always hit the database.

func (a *CachedFundraiseAdapter) GetByID(ctx context.Context, id string) (*entities.Fundraise, error) {
	return a.adapter.GetByID(ctx, id)
}

func (a *CachedFundraiseAdapter) GetByExternalID(ctx context.Context, externalID string) (*entities.Fundraise, error) {
	return a.adapter.GetByExternalID(ctx, externalID)
}

func (a *CachedFundraiseAdapter) GetByProjectAndDate(ctx context.Context, projectName string, announcedAt *time.Time) (*entities.Fundraise, error) {
	return a.adapter.GetByProjectAndDate(ctx, projectName, announcedAt)
}

func (a *CachedFundraiseAdapter) ListPendingEnrichment(ctx context.Context, maxAttempts, limit int) ([]*entities.Fundraise, error) {
	return a.adapter.ListPendingEnrichment(ctx, maxAttempts, limit)
}

// store writes the cache entry in the background so reads never wait on Redis
func (a *CachedFundraiseAdapter) store(key string, value interface{}, ttl int) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to marshal cache entry")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.cache.Set(ctx, key, data, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache fundraise read")
		}
	}()
}

func (a *CachedFundraiseAdapter) invalidate(ctx context.Context, slug string) {
	if slug != "" {
		if err := a.cache.Delete(ctx, providers.FundraiseSlugCacheKey(slug)); err != nil {
			log.Warn().Err(err).Str("slug", slug).Msg("failed to invalidate cached fundraise")
		}
	}
	if err := a.cache.DeletePattern(ctx, providers.FundraiseListCachePattern); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate cached fundraise lists")
	}
}
