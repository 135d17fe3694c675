package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY DEFAULT {{uuid}},
		barcode TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		brand TEXT,
		category TEXT,
		cost_price NUMERIC,
		price NUMERIC NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at {{timestamp}} NOT NULL DEFAULT {{now}}
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY DEFAULT {{uuid}},
		product_id TEXT NOT NULL REFERENCES products(id),
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		unit_price BIGINT NOT NULL,
		total BIGINT NOT NULL,
		created_at {{timestamp}} NOT NULL DEFAULT {{now}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at)`,
}

// Migrate creates the products and sales tables when they do not exist.
// Identifiers and creation times are column defaults, so the database
// assigns them on insert.
func (s *Store) Migrate(ctx context.Context) error {
	r := strings.NewReplacer(
		"{{timestamp}}", "TIMESTAMP",
		"{{uuid}}", "(lower(hex(randomblob(16))))",
		"{{now}}", "(strftime('%Y-%m-%d %H:%M:%f+00:00', 'now'))",
	)
	if s.dialect == Postgres {
		r = strings.NewReplacer(
			"{{timestamp}}", "TIMESTAMPTZ",
			"{{uuid}}", "gen_random_uuid()::text",
			"{{now}}", "now()",
		)
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
