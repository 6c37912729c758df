package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routecast/routecast/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Weather.Timeout)
	assert.Equal(t, "UTC", cfg.Weather.Timezone)
	assert.Contains(t, cfg.Weather.BaseURL, "weather.visualcrossing.com")
	assert.InDelta(t, 10.0, cfg.Pipeline.SampleIntervalKm, 1e-9)
	assert.Equal(t, config.CacheSQLite, cfg.Cache.Driver)
	assert.Equal(t, "data/routecast.db", cfg.Cache.SQLitePath)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 500, cfg.Events.BufferSize)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WEATHER_API_KEY", "secret")
	t.Setenv("WEATHER_TIMEOUT", "5s")
	t.Setenv("WEATHER_TIMEZONE", "Europe/Amsterdam")
	t.Setenv("SAMPLE_INTERVAL_KM", "2.5")
	t.Setenv("CACHE_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "secret", cfg.Weather.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Weather.Timeout)
	assert.InDelta(t, 2.5, cfg.Pipeline.SampleIntervalKm, 1e-9)
	assert.Equal(t, config.CachePostgres, cfg.Cache.Driver)
	assert.Equal(t, "db", cfg.Database.Host)

	loc, err := cfg.Weather.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("APP_PORT=7000\nWEATHER_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("APP_PORT", "8181")
	t.Cleanup(func() { os.Unsetenv("WEATHER_API_KEY") }) //nolint:errcheck // set by godotenv

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, "from-dotenv", cfg.Weather.APIKey)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		typ  config.ErrorType
	}{
		{"bad cache driver", "CACHE_DRIVER", "redis", config.ErrValidation},
		{"bad log level", "LOG_LEVEL", "verbose", config.ErrValidation},
		{"zero interval", "SAMPLE_INTERVAL_KM", "0", config.ErrValidation},
		{"unknown timezone", "WEATHER_TIMEZONE", "Mars/Olympus", config.ErrValidation},
		{"bad base url", "WEATHER_BASE_URL", "not a url", config.ErrValidation},
		{"unparseable duration", "WEATHER_TIMEOUT", "soon", config.ErrParsing},
		{"non-numeric concurrency", "FETCH_CONCURRENCY", "many", config.ErrParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := config.Load()
			require.Error(t, err)

			var cfgErr *config.Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.typ, cfgErr.Type)
		})
	}
}

func TestLevel_Fallback(t *testing.T) {
	cfg := &config.Config{LogLevel: "nonsense"}
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}
