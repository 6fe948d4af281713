package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cryptofundraises/tracker/internal/adapters/sources"
	"github.com/cryptofundraises/tracker/internal/application/services"
	"github.com/cryptofundraises/tracker/internal/bootstrap"
	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/cryptofundraises/tracker/pkg/config"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath    string
		migrationsDir string
		sourceArg     string
		enrich        bool
		interval      time.Duration
	)

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	flag.StringVar(&migrationsDir, "migrations", os.Getenv("MIGRATIONS_DIR"), "apply the .sql files in this directory before polling")
	flag.StringVar(&sourceArg, "source", "all", "comma-separated sources to poll (curated, telegram, csv) or \"all\"")
	flag.BoolVar(&enrich, "enrich", true, "run one enrichment batch after ingesting")
	flag.DurationVar(&interval, "interval", 0, "repeat on this interval until interrupted; 0 runs once")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(context.Background(), configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-ingest", cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	names, err := sourceNames(sourceArg, cfg.Sources)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -source")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infra, err := bootstrap.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect backing services")
	}
	defer func() {
		if err := infra.Close(); err != nil {
			log.Error().Err(err).Msg("error closing connections")
		}
	}()

	if err := bootstrap.ApplyMigrations(ctx, infra.Postgres, migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	pipeline, err := infra.NewPipeline(ctx, cfg, infra.Repository(nil))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	runner := &runner{
		pipeline: pipeline,
		cfg:      cfg.Sources,
		client:   sources.NewHTTPClient(30 * time.Second),
		names:    names,
		enrich:   enrich,
	}

	if interval <= 0 {
		if err := runner.run(ctx); err != nil {
			log.Error().Err(err).Msg("ingestion run failed")
			os.Exit(1)
		}
		return
	}

	log.Info().Dur("interval", interval).Strs("sources", names).Msg("polling")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runner.run(ctx); err != nil {
			log.Error().Err(err).Msg("ingestion run failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("ingestion stopped")
			return
		case <-ticker.C:
		}
	}
}

type runner struct {
	pipeline *services.FundraisePipeline
	cfg      config.SourcesConfig
	client   *http.Client
	names    []string
	enrich   bool
}

// run polls every configured source once, then optionally drains one
// enrichment batch. A failing source does not stop the others.
func (r *runner) run(ctx context.Context) error {
	var errs []error
	for _, name := range r.names {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		source, err := sources.New(name, r.cfg, r.client)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		start := time.Now()
		summary, err := r.pipeline.RunSource(ctx, source)
		if err != nil {
			log.Error().Err(err).Str("source", name).Msg("source run failed")
			errs = append(errs, err)
			continue
		}
		log.Info().
			Str("source", name).
			Int("fetched", summary.Fetched).
			Int("inserted", summary.Inserted).
			Int("merged", summary.Merged).
			Int("skipped", summary.Skipped).
			Int("enriched", summary.Enriched).
			Int("enrichment_failed", summary.EnrichmentFailed).
			Dur("took", time.Since(start)).
			Msg("source run complete")
	}

	if r.enrich && ctx.Err() == nil {
		summary, err := r.pipeline.EnrichPending(ctx)
		if err != nil {
			errs = append(errs, err)
		} else {
			log.Info().
				Int("selected", summary.Selected).
				Int("enriched", summary.Enriched).
				Int("failed", summary.Failed).
				Int("exhausted", summary.Exhausted).
				Msg("enrichment batch complete")
		}
	}

	return errors.Join(errs...)
}

// sourceNames expands the -source flag. "all" selects the feeds plus the CSV
// import when a location is configured.
func sourceNames(arg string, cfg config.SourcesConfig) ([]string, error) {
	arg = strings.TrimSpace(strings.ToLower(arg))
	if arg == "" || arg == "all" {
		names := []string{entities.SourceCurated, entities.SourceTelegram}
		if cfg.CSVLocation != "" {
			names = append(names, entities.SourceCSV)
		}
		return names, nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(arg, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		switch name {
		case entities.SourceCurated, entities.SourceTelegram, entities.SourceCSV:
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no sources selected")
	}
	return names, nil
}
