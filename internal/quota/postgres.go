package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxQuerier is the subset of a pgx pool the store needs. *pgxpool.Pool satisfies
// it, as does pgxmock in tests.
type PgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists the ledger in a single api_quota table:
//
//	CREATE TABLE api_quota (
//	    api_name   TEXT NOT NULL,
//	    month_key  TEXT NOT NULL,
//	    calls_used INTEGER NOT NULL DEFAULT 0,
//	    PRIMARY KEY (api_name, month_key)
//	);
type PostgresStore struct {
	db PgxQuerier
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db PgxQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get reads the current counter; a missing row reads as zero.
func (s *PostgresStore) Get(ctx context.Context, apiName, monthKey string) (int, error) {
	var used int
	err := s.db.QueryRow(ctx,
		`SELECT calls_used FROM api_quota WHERE api_name = $1 AND month_key = $2`,
		apiName, monthKey,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select quota: %w", err)
	}
	return used, nil
}

// Increment is the preferred atomic path: a single upsert statement bumps the
// counter server-side.
func (s *PostgresStore) Increment(ctx context.Context, apiName, monthKey string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_quota (api_name, month_key, calls_used)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (api_name, month_key)
		 DO UPDATE SET calls_used = api_quota.calls_used + 1`,
		apiName, monthKey,
	)
	if err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}
	return nil
}

// Upsert writes an absolute counter value. Only used as the fallback path.
func (s *PostgresStore) Upsert(ctx context.Context, apiName, monthKey string, used int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_quota (api_name, month_key, calls_used)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (api_name, month_key)
		 DO UPDATE SET calls_used = $3`,
		apiName, monthKey, used,
	)
	if err != nil {
		return fmt.Errorf("upsert quota: %w", err)
	}
	return nil
}
