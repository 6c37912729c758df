package forecastcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routecast/routecast/internal/forecast"
)

// PostgresRepository stores zstd-compressed payloads in PostgreSQL so that
// several API and worker processes share one cache.
type PostgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresRepository creates a repository on pool and applies the schema.
func NewPostgresRepository(ctx context.Context, pool *pgxpool.Pool) (*PostgresRepository, error) {
	ddl := strings.NewReplacer("BLOB", "BYTEA", "TIMESTAMP", "TIMESTAMPTZ").Replace(schema)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresRepository{pool: pool, now: time.Now}, nil
}

// Get implements forecast.Cache.
func (r *PostgresRepository) Get(ctx context.Context, lat, lon float64, day string) ([]byte, bool, error) {
	e, err := r.Lookup(ctx, forecast.CacheKey(lat, lon, day))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Payload, true, nil
}

// Put implements forecast.Cache.
func (r *PostgresRepository) Put(ctx context.Context, lat, lon float64, day string, payload []byte) error {
	stored, err := compress(payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO forecast_cache (cache_key, day, payload, cached_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			day = EXCLUDED.day,
			payload = EXCLUDED.payload,
			cached_at = EXCLUDED.cached_at
	`
	if _, err := r.pool.Exec(ctx, query, forecast.CacheKey(lat, lon, day), day, stored, r.now().UTC()); err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}

// Lookup implements Repository.
func (r *PostgresRepository) Lookup(ctx context.Context, key string) (*Entry, error) {
	query := `
		SELECT cache_key, day, payload, cached_at
		FROM forecast_cache
		WHERE cache_key = $1
	`

	var (
		e      Entry
		stored []byte
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(&e.Key, &e.Day, &stored, &e.CachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query forecast: %w", err)
	}

	if e.Payload, err = decompress(stored); err != nil {
		return nil, err
	}
	return &e, nil
}

// Stats implements Repository.
func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Driver: "postgres"}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM forecast_cache`).Scan(&s.Entries); err != nil {
		return s, fmt.Errorf("count forecasts: %w", err)
	}
	return s, nil
}

// Ping implements Repository.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close implements Repository. The pool is owned by the caller.
func (r *PostgresRepository) Close() error {
	return nil
}
