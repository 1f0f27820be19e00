package quotelog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectEntries = `
	SELECT
		id, source, segment, age, plan, income,
		predicted_premium, raw_prediction, model_used,
		status, error, duration_ms, created_at
	FROM quotes
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL quote log repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create appends an entry.
func (r *PostgresRepository) Create(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO quotes (
			id, source, segment, age, plan, income,
			predicted_premium, raw_prediction, model_used,
			status, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Source,
		e.Segment,
		e.Age,
		e.Plan,
		e.Income,
		e.PredictedPremium,
		e.RawPrediction,
		e.ModelUsed,
		string(e.Status),
		e.Error,
		e.Duration.Milliseconds(),
		e.CreatedAt,
	)
	return err
}

// Get retrieves an entry by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, selectEntries+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// List retrieves entries newest first using keyset pagination on
// (created_at, id).
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := selectEntries + `
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM quotes WHERE id = $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(opts.Status), opts.Cursor, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: entries}
	if len(entries) > limit {
		result.Items = entries[:limit]
		result.NextCursor = entries[limit-1].ID
	}
	return result, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e          Entry
		status     string
		durationMS int64
	)
	err := row.Scan(
		&e.ID,
		&e.Source,
		&e.Segment,
		&e.Age,
		&e.Plan,
		&e.Income,
		&e.PredictedPremium,
		&e.RawPrediction,
		&e.ModelUsed,
		&status,
		&e.Error,
		&durationMS,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
