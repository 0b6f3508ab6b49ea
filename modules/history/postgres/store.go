package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flemzord/presenced/internal/history"
)

// Store is a history.Store backed by a PostgreSQL table.
type Store struct {
	pool  *pgxpool.Pool
	table string
	keep  int
}

var _ history.Store = (*Store)(nil)

// NewStore wraps an existing pool. Call EnsureTable before use.
func NewStore(pool *pgxpool.Pool, table string, keep int) *Store {
	if keep <= 0 {
		keep = history.DefaultRetention
	}
	return &Store{pool: pool, table: table, keep: keep}
}

// EnsureTable creates the runs table if it doesn't exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			run_id      TEXT        NOT NULL,
			run_number  BIGINT      NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			success     BOOLEAN     NOT NULL DEFAULT FALSE,
			outcome     TEXT        NOT NULL DEFAULT '',
			error       TEXT        NOT NULL DEFAULT '',
			duration_ns BIGINT      NOT NULL DEFAULT 0
		)`, s.table))
	if err != nil {
		return fmt.Errorf("postgres: create table %s: %w", s.table, err)
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s(run_id)`, s.table, s.table))
	if err != nil {
		return fmt.Errorf("postgres: create index: %w", err)
	}
	return nil
}

// Append implements history.Store.
func (s *Store) Append(ctx context.Context, r history.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (run_id, run_number, started_at, finished_at, success, outcome, error, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table),
		r.RunID, int64(r.RunNumber),
		r.StartedAt.Truncate(time.Microsecond), r.FinishedAt.Truncate(time.Microsecond),
		r.Success, r.Outcome, r.Error, int64(r.Duration))
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %[1]s WHERE id NOT IN (SELECT id FROM %[1]s ORDER BY id DESC LIMIT $1)`, s.table),
		s.keep)
	if err != nil {
		return fmt.Errorf("postgres: prune runs: %w", err)
	}

	return tx.Commit(ctx)
}

// Recent implements history.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT run_id, run_number, started_at, finished_at, success, outcome, error, duration_ns
		FROM %s
		ORDER BY id DESC
		LIMIT $1`, s.table),
		history.ClampLimit(limit, s.keep))
	if err != nil {
		return nil, fmt.Errorf("postgres: query runs: %w", err)
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var (
			r                history.Record
			runNumber, durNS int64
		)
		if err := rows.Scan(&r.RunID, &runNumber, &r.StartedAt, &r.FinishedAt, &r.Success, &r.Outcome, &r.Error, &durNS); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		r.RunNumber = uint64(runNumber)
		r.Duration = time.Duration(durNS)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate runs: %w", err)
	}
	return out, nil
}
