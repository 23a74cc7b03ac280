package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/call-scheduler/internal/schedule"
)

// ErrNoDatabase is returned when a store is requested without DATABASE_URL.
var ErrNoDatabase = errors.New("DATABASE_URL is required for the schedule store")

// Store keeps imported schedule entries. Call outcomes are never stored.
type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, ErrNoDatabase
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

var entryColumns = []string{"source", "line", "recipient_name", "phone_number", "call_at"}

// ReplaceEntries swaps every entry stored under source for entries in one
// transaction and returns how many rows were written.
func (s *Store) ReplaceEntries(ctx context.Context, source string, entries []schedule.Entry) (int64, error) {
	if source == "" {
		return 0, errors.New("source is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("db: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_entries WHERE source=$1`, source); err != nil {
		return 0, fmt.Errorf("db: clear %s: %w", source, err)
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{source, e.Line, e.Name, e.Phone, e.CallAt.UTC()})
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"schedule_entries"}, entryColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("db: copy entries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("db: commit: %w", err)
	}
	return n, nil
}

// ListEntries returns entries for source (all sources when empty) with
// CallAt expressed in loc.
func (s *Store) ListEntries(ctx context.Context, source string, loc *time.Location) ([]schedule.Entry, error) {
	if loc == nil {
		loc = time.UTC
	}
	rows, err := s.pool.Query(ctx, `
SELECT line, recipient_name, phone_number, call_at
FROM schedule_entries
WHERE $1 = '' OR source = $1
ORDER BY source, line, id`, source)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer rows.Close()

	var out []schedule.Entry
	for rows.Next() {
		var e schedule.Entry
		var callAt time.Time
		if err := rows.Scan(&e.Line, &e.Name, &e.Phone, &callAt); err != nil {
			return nil, fmt.Errorf("db: scan entry: %w", err)
		}
		e.CallAt = callAt.In(loc)
		out = append(out, e)
	}
	return out, rows.Err()
}
