// Package postgres provides a PostgreSQL-backed LedgerStore for summarist.
//
// State lives in two tables: one row per ledger with the current day, and one
// row per (ledger, provider) with the usage count. Add locks the ledger row
// for the duration of its transaction, so concurrent processes serialize on it.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/summarist"
)

// Store is a PostgreSQL-backed LedgerStore.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
	ledger      string
}

var _ summarist.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "summarist_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// WithLedger names the ledger row, so several ledgers can share tables
// (default "default").
func WithLedger(name string) Option {
	return func(s *Store) { s.ledger = name }
}

// New creates a new PostgreSQL-backed LedgerStore.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "summarist_",
		ledger:      "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ledgersTable() string { return s.tablePrefix + "quota_ledgers" }
func (s *Store) usageTable() string   { return s.tablePrefix + "quota_usage" }

// EnsureSchema creates the required tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			day TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS %s (
			ledger TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			used BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (ledger, provider_id)
		);
	`, s.ledgersTable(), s.usageTable())
	_, err := s.pool.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("summarist/postgres: ensure schema: %w", err)
	}
	return nil
}

// Load reads the ledger. A ledger that was never saved yields an empty state.
func (s *Store) Load(ctx context.Context) (summarist.LedgerState, error) {
	state := summarist.LedgerState{Usage: make(map[string]int64)}

	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT day FROM %s WHERE name = $1`, s.ledgersTable()),
		s.ledger,
	).Scan(&state.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return summarist.LedgerState{}, fmt.Errorf("summarist/postgres: load day: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT provider_id, used FROM %s WHERE ledger = $1`, s.usageTable()),
		s.ledger,
	)
	if err != nil {
		return summarist.LedgerState{}, fmt.Errorf("summarist/postgres: load usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var used int64
		if err := rows.Scan(&id, &used); err != nil {
			return summarist.LedgerState{}, fmt.Errorf("summarist/postgres: scan usage: %w", err)
		}
		state.Usage[id] = used
	}
	if err := rows.Err(); err != nil {
		return summarist.LedgerState{}, fmt.Errorf("summarist/postgres: load usage: %w", err)
	}
	return state, nil
}

// Add applies delta to one provider's usage in a single transaction.
func (s *Store) Add(ctx context.Context, day, providerID string, delta, limit int64) (int64, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("summarist/postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, day) VALUES ($1, '') ON CONFLICT (name) DO NOTHING`, s.ledgersTable()),
		s.ledger,
	)
	if err != nil {
		return 0, false, fmt.Errorf("summarist/postgres: init ledger: %w", err)
	}

	var stored string
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT day FROM %s WHERE name = $1 FOR UPDATE`, s.ledgersTable()),
		s.ledger,
	).Scan(&stored)
	if err != nil {
		return 0, false, fmt.Errorf("summarist/postgres: lock ledger: %w", err)
	}

	// Lazy reset: usage from an earlier day is dropped.
	if stored < day {
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET day = $2, updated_at = now() WHERE name = $1`, s.ledgersTable()),
			s.ledger, day,
		)
		if err != nil {
			return 0, false, fmt.Errorf("summarist/postgres: reset day: %w", err)
		}
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE ledger = $1`, s.usageTable()),
			s.ledger,
		)
		if err != nil {
			return 0, false, fmt.Errorf("summarist/postgres: clear usage: %w", err)
		}
	}

	var used int64
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT used FROM %s WHERE ledger = $1 AND provider_id = $2`, s.usageTable()),
		s.ledger, providerID,
	).Scan(&used)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("summarist/postgres: read usage: %w", err)
	}

	if stored > day {
		return used, delta <= 0, nil
	}
	if delta > 0 && limit > 0 && used+delta > limit {
		return used, false, nil
	}

	err = tx.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %[1]s (ledger, provider_id, used) VALUES ($1, $2, GREATEST($3, 0))
			ON CONFLICT (ledger, provider_id) DO UPDATE SET used = GREATEST(%[1]s.used + $3, 0)
			RETURNING used`, s.usageTable()),
		s.ledger, providerID, delta,
	).Scan(&used)
	if err != nil {
		return 0, false, fmt.Errorf("summarist/postgres: save usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("summarist/postgres: commit: %w", err)
	}
	return used, true, nil
}
