package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver, registered as "sqlite"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 5 * time.Minute
	pingTimeout     = 5 * time.Second
)

// DriverName maps a store driver from the config to its database/sql driver.
func DriverName(storeDriver string) (string, error) {
	switch storeDriver {
	case "postgres":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", storeDriver)
	}
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(storeDriver, dsn string, logger *zap.Logger) (*sql.DB, error) {
	driver, err := DriverName(storeDriver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == "sqlite" {
		// un solo escritor; además cada conexión a ":memory:" es otra base
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("connected to database", zap.String("driver", driver))
	}
	return db, nil
}
