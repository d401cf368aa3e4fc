// Package repository persists the ledger journal through sqlx. Two dialects are
// supported: PostgreSQL via lib/pq and SQLite via the pure-Go modernc driver.
package repository

import (
	"context"
	"fmt"

	"github.com/evetabi/memeoracle/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// Open connects to the journal database described by cfg and applies the
// schema. cfg.Driver must be postgres or sqlite.
func Open(ctx context.Context, cfg config.StorageConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverSQLite:
	default:
		return nil, fmt.Errorf("repository.Open: unsupported driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository.Open: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite serialises writers anyway; one connection also keeps a
		// ":memory:" database from splitting across the pool.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository.Open ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the schema creation SQL for the connection's dialect. Safe to
// call multiple times.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema := postgresSchema
	if db.DriverName() == config.DriverSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository.Migrate: %w", err)
		}
	}
	return nil
}
