package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cryptofundraises/tracker/internal/adapters/database"
	"github.com/cryptofundraises/tracker/internal/adapters/search"
	"github.com/cryptofundraises/tracker/internal/application/services"
	"github.com/cryptofundraises/tracker/internal/bootstrap"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/postgres"
	"github.com/cryptofundraises/tracker/internal/infrastructure/clients/typesense"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath string
		reset      bool
		interval   time.Duration
		pageSize   int
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	flag.BoolVar(&reset, "reset", os.Getenv("RESET_TYPESENSE") == "true", "drop and recreate the collection before the first run")
	flag.DurationVar(&interval, "interval", envDuration("REINDEX_INTERVAL"), "repeat on this interval until interrupted; 0 runs once")
	flag.IntVar(&pageSize, "page-size", 200, "records read from the database per page")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(context.Background(), configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env)

	if interval < 0 {
		log.Fatal().Dur("interval", interval).Msg("interval must not be negative")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Typesense")
	}

	reindexer := services.NewSearchReindexService(
		database.NewFundraiseAdapter(pgClient),
		search.NewTypesenseAdapter(tsClient),
		pageSize,
	)

	for {
		err := runOnce(ctx, tsClient, reindexer, reset)
		reset = false

		if interval == 0 {
			if err != nil {
				log.Error().Err(err).Msg("reindex failed")
				os.Exit(1)
			}
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("indexer stopped")
			return
		case <-time.After(interval):
		}
	}
}

func runOnce(ctx context.Context, ts *typesense.Client, reindexer *services.SearchReindexService, reset bool) error {
	prepare := ts.InitSchema
	if reset {
		prepare = ts.ResetCollection
	}
	if err := prepare(ctx); err != nil {
		return err
	}

	start := time.Now()
	summary, err := reindexer.Reindex(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Int("indexed", summary.Indexed).
		Int("failed", summary.Failed).
		Dur("took", time.Since(start)).
		Msg("reindex complete")
	return nil
}

// envDuration reads a duration default for a flag. Unparseable values are
// reported and ignored.
func envDuration(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Err(err).Str(key, raw).Msg("ignoring invalid duration")
		return 0
	}
	return d
}
