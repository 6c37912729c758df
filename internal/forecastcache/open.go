package forecastcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options selects and configures a backend.
type Options struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string
	// Pool is the connection pool for the postgres driver.
	Pool *pgxpool.Pool
}

// Open creates the repository named by opts.Driver.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Driver {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath)
	case "postgres":
		if opts.Pool == nil {
			return nil, errors.New("postgres cache requires a connection pool")
		}
		return NewPostgresRepository(ctx, opts.Pool)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}
