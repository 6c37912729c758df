package forecastcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/routecast/routecast/internal/forecast"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

// SQLiteRepository stores zstd-compressed payloads in a SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path, enables WAL
// and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != MemoryDSN {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryDSN {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	repo, err := NewSQLiteRepository(ctx, db)
	if err != nil {
		_ = db.Close() //nolint:errcheck // best effort cleanup
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wraps an open database handle and applies the schema.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// Get implements forecast.Cache.
func (r *SQLiteRepository) Get(ctx context.Context, lat, lon float64, day string) ([]byte, bool, error) {
	e, err := r.Lookup(ctx, forecast.CacheKey(lat, lon, day))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Payload, true, nil
}

// Put implements forecast.Cache. A second Put for the same key replaces the
// payload and timestamp.
func (r *SQLiteRepository) Put(ctx context.Context, lat, lon float64, day string, payload []byte) error {
	stored, err := compress(payload)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO forecast_cache (cache_key, day, payload, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			day = excluded.day,
			payload = excluded.payload,
			cached_at = excluded.cached_at
	`, forecast.CacheKey(lat, lon, day), day, stored, r.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}

// Lookup implements Repository.
func (r *SQLiteRepository) Lookup(ctx context.Context, key string) (*Entry, error) {
	var (
		e      Entry
		stored []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT cache_key, day, payload, cached_at
		FROM forecast_cache
		WHERE cache_key = ?
	`, key).Scan(&e.Key, &e.Day, &stored, &e.CachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query forecast: %w", err)
	}

	if e.Payload, err = decompress(stored); err != nil {
		return nil, err
	}
	return &e, nil
}

// Stats implements Repository.
func (r *SQLiteRepository) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Driver: "sqlite"}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forecast_cache`).Scan(&s.Entries); err != nil {
		return s, fmt.Errorf("count forecasts: %w", err)
	}
	return s, nil
}

// Ping implements Repository.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
