package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cryptofundraises/tracker/internal/adapters/sources"
	"github.com/cryptofundraises/tracker/internal/api/handlers"
	"github.com/cryptofundraises/tracker/internal/api/routes"
	"github.com/cryptofundraises/tracker/internal/application/services"
	"github.com/cryptofundraises/tracker/internal/bootstrap"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/cryptofundraises/tracker/internal/infrastructure/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	migrationsDir := flag.String("migrations", os.Getenv("MIGRATIONS_DIR"), "apply the .sql files in this directory on startup")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(context.Background(), *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	infra, err := bootstrap.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect backing services")
	}
	defer func() {
		if err := infra.Close(); err != nil {
			log.Error().Err(err).Msg("error closing connections")
		}
	}()

	if err := bootstrap.ApplyMigrations(ctx, infra.Postgres, *migrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	repo := infra.Repository(metrics)

	pipeline, err := infra.NewPipeline(ctx, cfg, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	var cacheInvalidationService *services.CacheInvalidationService
	if infra.Cache != nil && infra.EventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(infra.Cache, infra.EventBus)
		if err := cacheInvalidationService.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
			cacheInvalidationService = nil
		}
	}

	if infra.Cache != nil {
		go services.NewCacheWarmingService(repo).StartPeriodicWarming(ctx, 5*time.Minute)
	}

	httpClient := sources.NewHTTPClient(30 * time.Second)
	sourceFactory := func(name string) (providers.AnnouncementSource, error) {
		return sources.New(name, cfg.Sources, httpClient)
	}

	fundraiseHandler := handlers.NewFundraiseHandler(repo, infra.Search)
	ingestionHandler := handlers.NewIngestionHandler(pipeline, sourceFactory, infra.Cache, cfg.Server.IdempotencyTTL)

	var streamHandler *handlers.StreamHandler
	if infra.EventBus != nil {
		streamHandler = handlers.NewStreamHandler(infra.EventBus, 30*time.Second)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = infra.Metrics.Handler()
	}

	router := routes.NewRouter(fundraiseHandler, ingestionHandler, streamHandler, metricsHandler, metrics, cfg.Server.AllowedOrigins)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	log.Info().Msg("server stopped")
}
