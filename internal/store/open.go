package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a Store.
type Options struct {
	Driver string
	Path   string // sqlite database file
	DSN    string // postgres connection string
	Debug  bool
	Logger *slog.Logger
}

// Open creates the store named by opts.Driver. Connecting to PostgreSQL is
// retried so a server can start alongside its database.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Driver {
	case DriverSQLite, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite store needs a path")
		}
		return OpenSQLite(opts.Path)
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres store needs a dsn")
		}
		var pg *Postgres
		err := retry.Do(
			func() error {
				var err error
				pg, err = OpenPostgres(ctx, PostgresOptions{DSN: opts.DSN, Debug: opts.Debug})
				return err
			},
			retry.Context(ctx),
			retry.Attempts(5),
			retry.Delay(500*time.Millisecond),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				logger.Warn("postgres not ready, retrying", "attempt", n+1, "error", err)
			}),
		)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
