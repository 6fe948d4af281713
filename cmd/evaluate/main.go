package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cryptofundraises/tracker/internal/application/services"
	"github.com/cryptofundraises/tracker/internal/bootstrap"
	"github.com/cryptofundraises/tracker/internal/evaluation"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath  string
		goldenPath  string
		verbose     bool
		minAccuracy float64
		minExact    float64
		maxFallback float64
	)

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	flag.StringVar(&goldenPath, "golden", "config/golden_announcements.json", "labeled announcements to score against")
	flag.BoolVar(&verbose, "verbose", false, "include per-announcement results in the report")
	flag.Float64Var(&minAccuracy, "min-accuracy", 0.7, "minimum per-field accuracy")
	flag.Float64Var(&minExact, "min-exact", 0.5, "minimum rate of fully correct extractions")
	flag.Float64Var(&maxFallback, "max-fallback", 0.2, "maximum rate of provider fallbacks")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(context.Background(), configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.Env)

	items, err := evaluation.LoadGoldenAnnouncements(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load golden announcements")
	}
	if err := evaluation.ValidateGoldenAnnouncements(items); err != nil {
		log.Fatal().Err(err).Msg("invalid golden announcements")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := bootstrap.NewExtractionProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build extraction provider")
	}
	extractor := services.NewFieldExtractor(provider, cfg.Extraction.Timeout)

	summary, err := evaluation.NewRunner(extractor).Run(ctx, items)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}
	if !verbose {
		summary.Results = nil
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode summary")
	}
	fmt.Println(string(out))

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinFieldAccuracy: minAccuracy,
		MinExactMatch:    minExact,
		MaxFallbackRate:  maxFallback,
	})
	if violations := guardrails.Violations(summary); len(violations) > 0 {
		for _, v := range violations {
			log.Error().Str("provider", cfg.Extraction.Provider).Msg(v)
		}
		os.Exit(1)
	}
}
