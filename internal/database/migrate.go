package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the tables used by the quote log and runtime settings.
// Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		id                TEXT PRIMARY KEY,
		source            TEXT NOT NULL,
		segment           TEXT NOT NULL,
		age               INTEGER NOT NULL,
		plan              TEXT NOT NULL,
		income            NUMERIC NOT NULL,
		predicted_premium BIGINT,
		raw_prediction    BIGINT,
		model_used        TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		error             TEXT NOT NULL DEFAULT '',
		duration_ms       BIGINT NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quotes_created_at_idx ON quotes (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS quotes_status_idx ON quotes (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS runtime_settings (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the schema in a single transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d: %w", i+1, err)
			}
		}
		return nil
	})
}
