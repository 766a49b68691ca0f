package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileCatalog is a Catalog stored as a YAML list of books. SetSummary
// rewrites the whole file.
type FileCatalog struct {
	mu    sync.Mutex
	path  string
	books []Book
}

var _ Catalog = (*FileCatalog)(nil)

type catalogFile struct {
	Books []Book `yaml:"books"`
}

// OpenFile loads the catalog at path.
func OpenFile(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("library: read %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("library: parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Books))
	for i, b := range f.Books {
		if b.ID == "" {
			return nil, fmt.Errorf("library: books[%d]: id is required", i)
		}
		if seen[b.ID] {
			return nil, fmt.Errorf("library: duplicate book id %q", b.ID)
		}
		seen[b.ID] = true
	}

	return &FileCatalog{path: path, books: f.Books}, nil
}

func (c *FileCatalog) Metadata(_ context.Context, id string) (Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, err := c.index(id)
	if err != nil {
		return Book{}, err
	}
	return c.books[i], nil
}

func (c *FileCatalog) SetSummary(_ context.Context, id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, err := c.index(id)
	if err != nil {
		return err
	}

	prev := c.books[i].Summary
	c.books[i].Summary = text
	if err := c.flush(); err != nil {
		c.books[i].Summary = prev
		return err
	}
	return nil
}

func (c *FileCatalog) IDs(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, len(c.books))
	for i, b := range c.books {
		ids[i] = b.ID
	}
	return ids, nil
}

func (c *FileCatalog) index(id string) (int, error) {
	for i, b := range c.books {
		if b.ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (c *FileCatalog) flush() error {
	data, err := yaml.Marshal(catalogFile{Books: c.books})
	if err != nil {
		return fmt.Errorf("library: marshal: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("library: write: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("library: rename: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is an unknown book id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
