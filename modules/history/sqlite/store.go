package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/presenced/internal/history"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Store is a history.Store backed by a SQLite database.
type Store struct {
	db   *sql.DB
	keep int
}

var _ history.Store = (*Store)(nil)

// Open opens (creating if needed) the database described by cfg and
// migrates its schema. The caller closes the returned Store.
//
// The pool is limited to one connection: SQLite serializes writes and
// PRAGMAs only apply to the connection they ran on.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, keep: cfg.Retention}, nil
}

// Append implements history.Store. Rows beyond the retention limit are
// pruned in the same transaction.
func (s *Store) Append(ctx context.Context, r history.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	success := 0
	if r.Success {
		success = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, run_number, started_at, finished_at, success, outcome, error, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, int64(r.RunNumber),
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		success, r.Outcome, r.Error, int64(r.Duration),
	); err != nil {
		return fmt.Errorf("sqlite: insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`,
		s.keep,
	); err != nil {
		return fmt.Errorf("sqlite: prune runs: %w", err)
	}

	return tx.Commit()
}

// Recent implements history.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, run_number, started_at, finished_at, success, outcome, error, duration_ns
		FROM runs
		ORDER BY id DESC
		LIMIT ?`,
		history.ClampLimit(limit, s.keep),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []history.Record
	for rows.Next() {
		var (
			r                 history.Record
			runNumber, durNS  int64
			success           int
			started, finished string
		)
		if err := rows.Scan(&r.RunID, &runNumber, &started, &finished, &success, &r.Outcome, &r.Error, &durNS); err != nil {
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		r.RunNumber = uint64(runNumber)
		r.Success = success != 0
		r.Duration = time.Duration(durNS)
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("sqlite: parse started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("sqlite: parse finished_at: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate runs: %w", err)
	}
	return out, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
