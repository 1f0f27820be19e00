package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectSettings = `
		SELECT key, value, updated_at
		FROM runtime_settings
	`

	upsertSetting = `
		INSERT INTO runtime_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
)

// settingRow is a runtime_settings row; value is JSONB.
type settingRow struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r settingRow) flag() (*Flag, error) {
	f := &Flag{Key: r.Key, UpdatedAt: r.UpdatedAt}
	if err := json.Unmarshal(r.Value, &f.Value); err != nil {
		return nil, fmt.Errorf("decoding setting %s: %w", r.Key, err)
	}
	return f, nil
}

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL runtime settings repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetFlag retrieves a single feature flag by key.
func (r *PostgresRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	rows, err := r.pool.Query(ctx, selectSettings+` WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[settingRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFlagNotFound
		}
		return nil, err
	}
	return row.flag()
}

// GetAllFlags retrieves all feature flags.
func (r *PostgresRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	rows, err := r.pool.Query(ctx, selectSettings+` ORDER BY key`)
	if err != nil {
		return nil, err
	}
	settings, err := pgx.CollectRows(rows, pgx.RowToStructByName[settingRow])
	if err != nil {
		return nil, err
	}

	flags := make(map[string]*Flag, len(settings))
	for _, s := range settings {
		f, err := s.flag()
		if err != nil {
			return nil, err
		}
		flags[f.Key] = f
	}
	return flags, nil
}

// SetFlag creates or updates a feature flag.
func (r *PostgresRepository) SetFlag(ctx context.Context, flag *Flag) error {
	return r.SetFlags(ctx, []*Flag{flag})
}

// SetFlags creates or updates multiple feature flags in one transaction.
func (r *PostgresRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	batch := &pgx.Batch{}
	for _, flag := range flags {
		valueJSON, err := json.Marshal(flag.Value)
		if err != nil {
			return fmt.Errorf("encoding setting %s: %w", flag.Key, err)
		}
		batch.Queue(upsertSetting, flag.Key, valueJSON, now)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

// DeleteFlag removes a feature flag by key.
func (r *PostgresRepository) DeleteFlag(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM runtime_settings WHERE key = $1`, key)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
