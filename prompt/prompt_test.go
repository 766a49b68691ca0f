package prompt_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/library"
	"github.com/ineyio/summarist/prompt"
)

func dune() library.Book {
	return library.Book{
		ID:          "1",
		Title:       "Dune",
		Authors:     []string{"Frank Herbert"},
		Publisher:   "Chilton",
		PubDate:     time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC),
		Series:      "Dune",
		SeriesIndex: 1,
	}
}

func TestRender(t *testing.T) {
	tmpl := prompt.Template{
		System:    "You summarize books.",
		User:      "Summarize {title} by {authors} ({publisher}, {pubdate}), {series} #{series_index}.",
		MaxTokens: 512,
	}

	req, err := tmpl.Render(dune())
	require.NoError(t, err)
	assert.Equal(t, "You summarize books.", req.System)
	assert.Equal(t, "Summarize Dune by Frank Herbert (Chilton, 1965-08-01), Dune #1.", req.User)
	assert.Equal(t, 512, req.MaxTokens)
}

func TestRender_Defaults(t *testing.T) {
	tmpl := prompt.Template{User: "{title}|{authors}|{publisher}|{pubdate}|{series}|{series_index}"}

	req, err := tmpl.Render(library.Book{Title: "Anon"})
	require.NoError(t, err)
	assert.Equal(t, "Anon|Unknown|Unknown|Unknown|None|", req.User)
	assert.Empty(t, req.System)
	assert.Len(t, req.Messages(), 1)
}

func TestRender_MultipleAuthors(t *testing.T) {
	book := library.Book{Title: "Good Omens", Authors: []string{"Terry Pratchett", "Neil Gaiman"}}

	req, err := prompt.Template{User: "{authors}"}.Render(book)
	require.NoError(t, err)
	assert.Equal(t, "Terry Pratchett, Neil Gaiman", req.User)
}

func TestRender_EscapedBraces(t *testing.T) {
	req, err := prompt.Template{User: `Reply as {{"summary": "..."}} for {title}`}.Render(dune())
	require.NoError(t, err)
	assert.Equal(t, `Reply as {"summary": "..."} for Dune`, req.User)
}

func TestRender_UnknownPlaceholder(t *testing.T) {
	_, err := prompt.Template{User: "Summarize {title} in {language}"}.Render(dune())
	require.Error(t, err)
	assert.True(t, errors.Is(err, summarist.ErrTemplate))

	var te *prompt.TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "language", te.Placeholder)
	assert.Contains(t, te.Available, "title")
	assert.Contains(t, err.Error(), `"language"`)
	assert.Contains(t, err.Error(), "title, authors, publisher, pubdate, series")
}

func TestRender_SystemPromptError(t *testing.T) {
	_, err := prompt.Template{System: "{oops}", User: "{title}"}.Render(dune())
	assert.ErrorIs(t, err, summarist.ErrTemplate)
}

func TestExpand_BrokenBraces(t *testing.T) {
	for _, tmpl := range []string{"open {title", "close } here"} {
		_, err := prompt.Expand(tmpl, prompt.Variables(dune()))
		assert.ErrorIs(t, err, summarist.ErrTemplate, tmpl)
	}
}

func TestExistingSummary(t *testing.T) {
	book := dune()
	book.Summary = "Old text."

	out, err := prompt.Expand("Improve: {existing_summary}", prompt.Variables(book))
	require.NoError(t, err)
	assert.Equal(t, "Improve: Old text.", out)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t,
		"Title: Dune\nAuthor: Frank Herbert\nPublisher: Chilton\nPublication Date: 1965-08-01\nSeries: Dune (Book 1)",
		prompt.Describe(dune()))

	assert.Equal(t,
		"Title: Anon\nAuthor: Unknown\nPublisher: Unknown\nPublication Date: Unknown",
		prompt.Describe(library.Book{Title: "Anon"}))
}

func TestFromConfig(t *testing.T) {
	cfg := summarist.DefaultConfig()
	tmpl := prompt.FromConfig(cfg.Prompts, cfg.MaxTokens)

	req, err := tmpl.Render(dune())
	require.NoError(t, err)
	assert.Contains(t, req.User, `"Dune" by Frank Herbert`)
	assert.Equal(t, cfg.MaxTokens, req.MaxTokens)
}
