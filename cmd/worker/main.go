// Package main provides the entrypoint for the routecast prefetch worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/handler"
	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/config"
	"github.com/routecast/routecast/internal/database"
	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/forecast/visualcrossing"
	"github.com/routecast/routecast/internal/forecastcache"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/telemetry"
	"github.com/routecast/routecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "routecast-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Level())

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting routecast worker")

	if cfg.PubSub.ProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID is required for the worker")
	}
	if cfg.Weather.APIKey == "" {
		log.Fatal().Msg("WEATHER_API_KEY is required for the worker")
	}
	loc, err := cfg.Weather.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	var pool *pgxpool.Pool
	if cfg.Cache.Driver == config.CachePostgres {
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
	}

	cache, err := forecastcache.Open(ctx, forecastcache.Options{
		Driver:     cfg.Cache.Driver,
		SQLitePath: cfg.Cache.SQLitePath,
		Pool:       pool,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open forecast cache")
	}
	defer func() { _ = cache.Close() }()

	registry := resilience.NewRegistry()
	forecasts := forecast.NewService(forecast.ServiceConfig{
		Provider: visualcrossing.NewClient(visualcrossing.ClientConfig{
			BaseURL:  cfg.Weather.BaseURL,
			Timeout:  cfg.Weather.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Cache:   cache,
		Sink:    events.NewLogSink(log),
		Metrics: providerMetrics,
		Logger:  log,
	})

	prefetch := worker.NewPrefetchJob(worker.PrefetchJobConfig{
		Config: worker.PrefetchConfig{
			IntervalKm:  cfg.Pipeline.SampleIntervalKm,
			Concurrency: cfg.Pipeline.FetchConcurrency,
			Timeout:     cfg.Weather.Timeout,
		},
		Fetcher: forecasts,
		APIKey:  cfg.Weather.APIKey,
		Logger:  log,
	})

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.PrefetchSubscription,
		Processor: worker.NewProcessor(worker.ProcessorConfig{
			Prefetch: prefetch,
			Location: loc,
			Logger:   log,
		}),
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() { _ = subscriber.Close() }()

	// The worker exposes liveness and readiness for the platform.
	ops := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Cache:     cache,
		Registry:  registry,
	})
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub receive stopped")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().
		Interface("metrics", prefetch.MetricsSnapshot()).
		Msg("worker stopped")
}
