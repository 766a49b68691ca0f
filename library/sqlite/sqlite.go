// Package sqlite is a library.Catalog backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ineyio/summarist/library"
)

const createTable = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	authors TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	pubdate DATETIME,
	series TEXT NOT NULL DEFAULT '',
	series_index REAL NOT NULL DEFAULT 0,
	summary TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// authorSep separates authors in the authors column.
const authorSep = " & "

// Catalog implements library.Catalog with SQLite.
type Catalog struct {
	db *sql.DB
}

var _ library.Catalog = (*Catalog)(nil)

// New opens (or creates) the database at dbPath and runs auto-migration.
func New(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate library db: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Put inserts or replaces a book.
func (c *Catalog) Put(ctx context.Context, b library.Book) error {
	var pubdate any
	if !b.PubDate.IsZero() {
		pubdate = b.PubDate.UTC()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO books (id, title, authors, publisher, pubdate, series, series_index, summary, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, authors = excluded.authors,
		   publisher = excluded.publisher, pubdate = excluded.pubdate, series = excluded.series,
		   series_index = excluded.series_index, summary = excluded.summary, updated_at = excluded.updated_at`,
		b.ID, b.Title, strings.Join(b.Authors, authorSep), b.Publisher, pubdate,
		b.Series, b.SeriesIndex, b.Summary, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put book %s: %w", b.ID, err)
	}
	return nil
}

// Metadata returns the book with the given id.
func (c *Catalog) Metadata(ctx context.Context, id string) (library.Book, error) {
	var (
		b       library.Book
		authors string
		pubdate sql.NullTime
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, title, authors, publisher, pubdate, series, series_index, summary FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &authors, &b.Publisher, &pubdate, &b.Series, &b.SeriesIndex, &b.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return library.Book{}, fmt.Errorf("%w: %s", library.ErrNotFound, id)
	}
	if err != nil {
		return library.Book{}, fmt.Errorf("query book %s: %w", id, err)
	}

	if authors != "" {
		b.Authors = strings.Split(authors, authorSep)
	}
	if pubdate.Valid {
		b.PubDate = pubdate.Time
	}
	return b, nil
}

// SetSummary replaces the summary of an existing book.
func (c *Catalog) SetSummary(ctx context.Context, id, text string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE books SET summary = ?, updated_at = ? WHERE id = ?`, text, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set summary %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set summary %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", library.ErrNotFound, id)
	}
	return nil
}

// IDs returns every book id ordered by title.
func (c *Catalog) IDs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM books ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan book id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases resources.
func (c *Catalog) Close() error {
	return c.db.Close()
}
