// Package forecastcache provides forecast.Cache backends: an in-memory map
// for tests and ephemeral runs, SQLite for single-node deployments and
// PostgreSQL for shared deployments.
package forecastcache

import (
	"context"
	"errors"
	"time"

	"github.com/routecast/routecast/internal/forecast"
)

// ErrNotFound is returned by Lookup when no entry exists for a key.
var ErrNotFound = errors.New("forecast cache entry not found")

// Entry is one cached provider payload.
type Entry struct {
	Key      string
	Day      string
	Payload  []byte
	CachedAt time.Time
}

// Stats summarizes a repository for the ops status endpoint.
type Stats struct {
	Driver  string `json:"driver"`
	Entries int    `json:"entries"`
}

// Repository is a forecast.Cache with lifecycle and inspection hooks.
type Repository interface {
	forecast.Cache

	// Lookup returns the full entry for a key, or ErrNotFound.
	Lookup(ctx context.Context, key string) (*Entry, error)

	// Stats reports the backend name and entry count.
	Stats(ctx context.Context) (Stats, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS forecast_cache (
    cache_key TEXT PRIMARY KEY,
    day TEXT NOT NULL,
    payload BLOB NOT NULL,
    cached_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forecast_cache_day ON forecast_cache(day);
`
