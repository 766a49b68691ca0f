// Package sqlite provides a SQLite-backed LedgerStore for summarist, suitable
// for a single-user desktop install where the ledger must survive restarts.
// Several processes may share one database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ineyio/summarist"
)

const createTables = `
CREATE TABLE IF NOT EXISTS quota_ledger (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	day TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS quota_usage (
	provider_id TEXT PRIMARY KEY,
	used INTEGER NOT NULL DEFAULT 0
);
`

// Store implements summarist.LedgerStore with a SQLite database.
type Store struct {
	db *sql.DB
}

var _ summarist.LedgerStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	// Transactions take the write lock up front so a read-check-write in Add
	// cannot interleave with another writer.
	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open quota db: %w", err)
	}

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate quota db: %w", err)
	}

	return &Store{db: db}, nil
}

// Load reads the ledger. An empty database yields an empty state.
func (s *Store) Load(ctx context.Context) (summarist.LedgerState, error) {
	state := summarist.LedgerState{Usage: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx, `SELECT day FROM quota_ledger WHERE id = 1`).Scan(&state.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return summarist.LedgerState{}, fmt.Errorf("load quota day: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT provider_id, used FROM quota_usage`)
	if err != nil {
		return summarist.LedgerState{}, fmt.Errorf("load quota usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var used int64
		if err := rows.Scan(&id, &used); err != nil {
			return summarist.LedgerState{}, fmt.Errorf("scan quota usage: %w", err)
		}
		state.Usage[id] = used
	}
	return state, rows.Err()
}

// Add updates one provider's usage in a single immediate transaction.
func (s *Store) Add(ctx context.Context, day, providerID string, delta, limit int64) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin quota tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT day FROM quota_ledger WHERE id = 1`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("read quota day: %w", err)
	}

	if stored < day {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quota_ledger (id, day) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET day = excluded.day`,
			day,
		); err != nil {
			return 0, false, fmt.Errorf("save quota day: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quota_usage`); err != nil {
			return 0, false, fmt.Errorf("clear quota usage: %w", err)
		}
	}

	var used int64
	err = tx.QueryRowContext(ctx, `SELECT used FROM quota_usage WHERE provider_id = ?`, providerID).Scan(&used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("read quota usage: %w", err)
	}

	if stored > day {
		return used, delta <= 0, nil
	}
	if delta > 0 && limit > 0 && used+delta > limit {
		return used, false, nil
	}

	used = max(used+delta, 0)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quota_usage (provider_id, used) VALUES (?, ?)
		 ON CONFLICT(provider_id) DO UPDATE SET used = excluded.used`,
		providerID, used,
	); err != nil {
		return 0, false, fmt.Errorf("save quota usage %s: %w", providerID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit quota tx: %w", err)
	}
	return used, true, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}
