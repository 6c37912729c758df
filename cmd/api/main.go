// Package main provides the entrypoint for the routecast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api"
	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/config"
	"github.com/routecast/routecast/internal/database"
	"github.com/routecast/routecast/internal/events"
	"github.com/routecast/routecast/internal/forecast"
	"github.com/routecast/routecast/internal/forecast/visualcrossing"
	"github.com/routecast/routecast/internal/forecastcache"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/ranking"
	"github.com/routecast/routecast/internal/telemetry"
	"github.com/routecast/routecast/internal/weather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "routecast-api"

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
		Str("env", cfg.Environment).
		Msg("starting routecast API")

	loc, err := cfg.Weather.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	rankingMetrics, err := telemetry.NewRankingMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ranking metrics")
	}

	// Postgres is only needed for the postgres cache driver.
	var pool *pgxpool.Pool
	if cfg.Cache.Driver == config.CachePostgres {
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
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
	log.Info().Str("driver", cfg.Cache.Driver).Msg("forecast cache ready")

	// Diagnostic events go to the ring buffer, the log and optionally Pub/Sub.
	ring := events.NewRing(cfg.Events.BufferSize)
	sink := events.Multi{ring, events.NewLogSink(log)}
	if cfg.PubSub.ProjectID != "" {
		psClient, psErr := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub client")
		}
		defer func() { _ = psClient.Close() }()

		psSink := events.NewPubSubSink(events.PubSubSinkConfig{
			Client: psClient,
			Topic:  cfg.PubSub.EventsTopic,
			Logger: log,
		})
		defer psSink.Close()
		sink = append(sink, psSink)
		log.Info().Str("topic", cfg.PubSub.EventsTopic).Msg("publishing events to pubsub")
	}

	registry := resilience.NewRegistry()
	provider := visualcrossing.NewClient(visualcrossing.ClientConfig{
		BaseURL:  cfg.Weather.BaseURL,
		Timeout:  cfg.Weather.Timeout,
		Registry: registry,
		Logger:   log,
	})

	forecasts := forecast.NewService(forecast.ServiceConfig{
		Provider: provider,
		Cache:    cache,
		Sink:     sink,
		Metrics:  providerMetrics,
		Logger:   log,
	})
	aggregator := weather.NewAggregator(weather.AggregatorConfig{
		Fetcher:     forecasts,
		Concurrency: cfg.Pipeline.FetchConcurrency,
		Sink:        sink,
		Logger:      log,
	})
	rankingService := ranking.NewService(ranking.ServiceConfig{
		Aggregator:  aggregator,
		IntervalKm:  cfg.Pipeline.SampleIntervalKm,
		Concurrency: cfg.Pipeline.RouteConcurrency,
		Sink:        sink,
		Metrics:     rankingMetrics,
		Logger:      log,
	})

	if cfg.Weather.APIKey == "" {
		log.Warn().Msg("WEATHER_API_KEY not set - requests must send X-Weather-Api-Key")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        httpMetrics,
		Ranking:        rankingService,
		Sessions:       ranking.NewSessionStore(ranking.DefaultMaxSessions),
		Events:         ring,
		Cache:          cache,
		Registry:       registry,
		DefaultAPIKey:  cfg.Weather.APIKey,
		Location:       loc,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		RequireTLS:     cfg.Server.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
