// Package store opens the pos.Storage backend selected in the configuration.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"api_pos/internal/platform/config"
	"api_pos/internal/platform/database"
	"api_pos/internal/pos"
	"api_pos/internal/store/postgrest"
	"api_pos/internal/store/sqlstore"
)

// Open returns the configured storage and a function releasing its resources.
// SQLite databases get their tables created on open; Postgres and PostgREST
// schemas are managed outside the service (see the migrate command).
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (pos.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on exit")
		return pos.NewLocalStorage(), noop, nil

	case config.DriverPostgres, config.DriverSQLite:
		db, err := database.Connect(cfg.Driver, cfg.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		dialect := sqlstore.Postgres
		if cfg.Driver == config.DriverSQLite {
			dialect = sqlstore.SQLite
		}
		s := sqlstore.New(db, dialect, logger)
		if dialect == sqlstore.SQLite {
			if err := s.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return s, db.Close, nil

	case config.DriverPostgREST:
		s := postgrest.New(postgrest.Config{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger)
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Migrate creates the SQL schema for the sql drivers.
func Migrate(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) error {
	if cfg.Driver != config.DriverPostgres && cfg.Driver != config.DriverSQLite {
		return fmt.Errorf("migrate is only supported for sql drivers, got %q", cfg.Driver)
	}
	db, err := database.Connect(cfg.Driver, cfg.DSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	dialect := sqlstore.Postgres
	if cfg.Driver == config.DriverSQLite {
		dialect = sqlstore.SQLite
	}
	return sqlstore.New(db, dialect, logger).Migrate(ctx)
}
