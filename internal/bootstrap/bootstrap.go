// Package bootstrap wires the infrastructure shared by the API server and
// the ingestion CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cryptofundraises/tracker/internal/adapters/cache"
	"github.com/cryptofundraises/tracker/internal/adapters/database"
	"github.com/cryptofundraises/tracker/internal/adapters/events"
	"github.com/cryptofundraises/tracker/internal/adapters/search"
	"github.com/cryptofundraises/tracker/internal/application/services"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/domain/repositories"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/gemini"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/openai"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/postgres"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/redis"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/typesense"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/cryptofundraises/tracker/pkg/config"
	"github.com/cryptofundraises/tracker/pkg/secrets"
	"github.com/rs/zerolog/log"
)

// LoadConfig exports any Vault secrets into the environment, then loads the
// configuration from path (may be empty) and the environment.
func LoadConfig(ctx context.Context, path string) (*config.Config, error) {
	if _, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv("")); err != nil {
		return nil, fmt.Errorf("failed to load Vault secrets: %w", err)
	}
	return config.LoadFile(path)
}

// Infra holds the connected backing services. Redis and Typesense are
// optional; their fields stay nil when disabled or unreachable.
type Infra struct {
	Postgres  *postgres.Client
	Redis     *redis.Client
	Typesense *typesense.Client

	Cache    providers.CacheProvider
	EventBus providers.EventBus
	Search   repositories.FundraiseSearchRepository
	Metrics  *observability.PipelineMetrics
}

// Connect opens the store and the optional backing services
func Connect(ctx context.Context, cfg *config.Config) (*Infra, error) {
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	infra := &Infra{
		Postgres: pgClient,
		Metrics:  observability.NewPipelineMetrics(),
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable; running without cache, events or idempotency")
		} else {
			infra.Redis = redisClient
			infra.Cache = cache.NewRedisAdapter(redisClient)
			infra.EventBus = events.NewRedisEventBus(redisClient, events.WithDropHandler(infra.Metrics.EventDropped))
		}
	}

	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; free-text search uses the database")
		} else if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to init Typesense schema; search disabled")
		} else {
			infra.Typesense = tsClient
			infra.Search = search.NewTypesenseAdapter(tsClient)
		}
	}

	return infra, nil
}

// ApplyMigrations runs every .sql file in dir in name order. The scripts are
// written to be re-runnable. An empty dir is a no-op.
func ApplyMigrations(ctx context.Context, client *postgres.Client, dir string) error {
	if dir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		ddl, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := client.ApplySchema(ctx, string(ddl)); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		log.Info().Str("file", filepath.Base(file)).Msg("applied migration")
	}
	return nil
}

// Close releases every connection
func (i *Infra) Close() error {
	var errs []error
	if i.EventBus != nil {
		errs = append(errs, i.EventBus.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	errs = append(errs, i.Postgres.Close())
	return errors.Join(errs...)
}

// Repository returns the record store, wrapped in the Redis read-through
// cache when Redis is available
func (i *Infra) Repository(metrics *observability.Metrics) repositories.FundraiseRepository {
	base := database.NewFundraiseAdapter(i.Postgres)
	if i.Cache == nil {
		return base
	}
	return database.NewCachedFundraiseAdapter(base, i.Cache, metrics)
}

// NewPipeline builds the fundraise pipeline with the configured extractor
// and every optional collaborator that is available
func (i *Infra) NewPipeline(ctx context.Context, cfg *config.Config, repo repositories.FundraiseRepository) (*services.FundraisePipeline, error) {
	provider, err := NewExtractionProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	extractor := services.NewFieldExtractor(provider, cfg.Extraction.Timeout)
	pipeline := services.NewFundraisePipeline(repo, extractor, cfg.Pipeline)
	pipeline.SetObserver(i.Metrics)
	if i.Search != nil {
		pipeline.SetSearchIndex(i.Search)
	}
	if i.EventBus != nil {
		pipeline.SetEventBus(i.EventBus)
	}
	return pipeline, nil
}

// NewExtractionProvider selects the LLM backend named in the configuration
func NewExtractionProvider(ctx context.Context, cfg *config.Config) (providers.FundraiseExtractionProvider, error) {
	switch cfg.Extraction.Provider {
	case "openai":
		client, err := openai.NewClient(&cfg.OpenAI, cfg.Extraction.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		return client, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, &cfg.Gemini, cfg.Extraction.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Extraction.Provider)
	}
}
