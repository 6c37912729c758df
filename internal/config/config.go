// Package config loads process configuration from the environment.
//
// Values resolve in priority order: OS environment, then an optional .env
// file in the working directory, then the struct tag defaults. The loaded
// Config is validated once at startup and treated as immutable afterwards.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/database"
)

// Cache driver names accepted by CACHE_DRIVER.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

// Config is the top-level configuration for the API and worker binaries.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=local development test staging production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	Server    ServerConfig
	Weather   WeatherConfig
	Pipeline  PipelineConfig
	Cache     CacheConfig
	Database  database.Config
	Telemetry TelemetryConfig
	PubSub    PubSubConfig
	Events    EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	RequireTLS   bool          `envconfig:"REQUIRE_TLS" default:"false"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"120s"`
	MaxUploadMB  int64         `envconfig:"MAX_UPLOAD_MB" default:"20" validate:"min=1,max=512"`
}

// WeatherConfig configures the forecast provider client.
type WeatherConfig struct {
	BaseURL  string        `envconfig:"WEATHER_BASE_URL" default:"https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline" validate:"required,url"`
	APIKey   string        `envconfig:"WEATHER_API_KEY"`
	Timeout  time.Duration `envconfig:"WEATHER_TIMEOUT" default:"30s"`
	Timezone string        `envconfig:"WEATHER_TIMEZONE" default:"UTC" validate:"required"`
}

// PipelineConfig tunes sampling and fan-out.
type PipelineConfig struct {
	SampleIntervalKm float64 `envconfig:"SAMPLE_INTERVAL_KM" default:"10" validate:"gt=0"`
	FetchConcurrency int     `envconfig:"FETCH_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	RouteConcurrency int     `envconfig:"ROUTE_CONCURRENCY" default:"4" validate:"min=1,max=64"`
}

// CacheConfig selects the forecast cache backend.
type CacheConfig struct {
	Driver     string `envconfig:"CACHE_DRIVER" default:"sqlite" validate:"oneof=memory sqlite postgres"`
	SQLitePath string `envconfig:"CACHE_SQLITE_PATH" default:"data/routecast.db" validate:"required_if=Driver sqlite"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

// PubSubConfig configures Google Cloud Pub/Sub. An empty ProjectID disables
// event publishing in the API and is rejected by the worker.
type PubSubConfig struct {
	ProjectID            string `envconfig:"PUBSUB_PROJECT_ID"`
	EventsTopic          string `envconfig:"PUBSUB_EVENTS_TOPIC" default:"routecast-events"`
	PrefetchSubscription string `envconfig:"PUBSUB_PREFETCH_SUBSCRIPTION" default:"routecast-prefetch"`
}

// EventsConfig sizes the in-process diagnostic buffer.
type EventsConfig struct {
	BufferSize int `envconfig:"EVENT_BUFFER_SIZE" default:"500" validate:"min=1,max=100000"`
}

// Location returns the zone used to interpret target times without an offset.
func (w WeatherConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", w.Timezone, err)
	}
	return loc, nil
}

// Level returns the parsed zerolog level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
