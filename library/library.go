// Package library defines the book metadata collaborators the batch reads
// from and the review commit writes to.
package library

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for an unknown book id.
var ErrNotFound = errors.New("library: book not found")

// Book is the metadata used to build a prompt, plus the current summary.
type Book struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Authors     []string  `yaml:"authors"`
	Publisher   string    `yaml:"publisher,omitempty"`
	PubDate     time.Time `yaml:"pubdate,omitempty"`
	Series      string    `yaml:"series,omitempty"`
	SeriesIndex float64   `yaml:"series_index,omitempty"`
	Summary     string    `yaml:"summary,omitempty"`
}

// Source reads book metadata. It is only read during generation.
type Source interface {
	Metadata(ctx context.Context, id string) (Book, error)
}

// Sink writes a generated summary back to a book.
type Sink interface {
	SetSummary(ctx context.Context, id, text string) error
}

// Catalog is a full library backend.
type Catalog interface {
	Source
	Sink
	IDs(ctx context.Context) ([]string, error)
}
