package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/summarist/library"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutAndMetadata(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	in := library.Book{
		ID:          "42",
		Title:       "Good Omens",
		Authors:     []string{"Terry Pratchett", "Neil Gaiman"},
		Publisher:   "Gollancz",
		PubDate:     time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		SeriesIndex: 0,
	}
	require.NoError(t, c.Put(ctx, in))

	out, err := c.Metadata(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Authors, out.Authors)
	assert.Equal(t, in.Publisher, out.Publisher)
	assert.True(t, in.PubDate.Equal(out.PubDate))
	assert.Empty(t, out.Series)
}

func TestMetadata_NoAuthorsNoDate(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, library.Book{ID: "1", Title: "Anon"}))

	b, err := c.Metadata(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, b.Authors)
	assert.True(t, b.PubDate.IsZero())
}

func TestMetadata_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Metadata(context.Background(), "missing")
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestSetSummary(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, library.Book{ID: "1", Title: "B"}))
	require.NoError(t, c.SetSummary(ctx, "1", "summary text"))

	b, err := c.Metadata(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "summary text", b.Summary)

	assert.ErrorIs(t, c.SetSummary(ctx, "2", "x"), library.ErrNotFound)
}

func TestIDsOrderedByTitle(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, library.Book{ID: "a", Title: "Zebra"}))
	require.NoError(t, c.Put(ctx, library.Book{ID: "b", Title: "Apple"}))

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}
