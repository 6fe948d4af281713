package providers

import (
	"context"
	"time"
)

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// SetNX stores a value only if the key is absent and reports whether it did
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}

// Cache keys for fundraise reads. List keys embed a hash of the filter, so
// any write invalidates them by pattern.
const (
	FundraiseCachePrefix      = "fundraise:cache:"
	FundraiseListCachePattern = FundraiseCachePrefix + "list:*"
)

// FundraiseSlugCacheKey is the cache key for a detail lookup by slug
func FundraiseSlugCacheKey(slug string) string {
	return FundraiseCachePrefix + "slug:" + slug
}

// FundraiseListCacheKey is the cache key for a list query with the given filter hash
func FundraiseListCacheKey(hash string) string {
	return FundraiseCachePrefix + "list:" + hash
}
