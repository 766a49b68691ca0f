// Package prompt renders book metadata into generation requests.
//
// Templates use {name} placeholders. Doubled braces ({{ and }}) produce
// literal braces.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ineyio/summarist"
	"github.com/ineyio/summarist/library"
)

// DateLayout is how {pubdate} is rendered.
const DateLayout = "2006-01-02"

const unknown = "Unknown"

// Placeholders lists every variable a template may use, in display order.
var Placeholders = []string{
	"title",
	"authors",
	"publisher",
	"pubdate",
	"series",
	"series_index",
	"existing_summary",
}

// TemplateError is returned when a template references a placeholder that
// does not exist or is syntactically broken.
type TemplateError struct {
	Placeholder string
	Available   []string
	Detail      string
}

func (e *TemplateError) Error() string {
	if e.Detail != "" {
		return "template error: " + e.Detail
	}
	return fmt.Sprintf("template variable %q not found. Available variables: %s",
		e.Placeholder, strings.Join(e.Available, ", "))
}

func (e *TemplateError) Unwrap() error { return summarist.ErrTemplate }

// Template is a system/user prompt pair. An empty System sends the user
// prompt alone.
type Template struct {
	System    string
	User      string
	MaxTokens int
}

// FromConfig builds a Template from the configured prompts.
func FromConfig(cfg summarist.PromptConfig, maxTokens int) Template {
	return Template{System: cfg.System, User: cfg.User, MaxTokens: maxTokens}
}

// Render fills both prompts from book.
func (t Template) Render(book library.Book) (summarist.GenerationRequest, error) {
	vars := Variables(book)

	system, err := Expand(t.System, vars)
	if err != nil {
		return summarist.GenerationRequest{}, err
	}
	user, err := Expand(t.User, vars)
	if err != nil {
		return summarist.GenerationRequest{}, err
	}

	return summarist.GenerationRequest{System: system, User: user, MaxTokens: t.MaxTokens}, nil
}

// Variables returns the placeholder values for book with defaults applied.
func Variables(book library.Book) map[string]string {
	vars := map[string]string{
		"title":            book.Title,
		"authors":          unknown,
		"publisher":        unknown,
		"pubdate":          unknown,
		"series":           "None",
		"series_index":     "",
		"existing_summary": book.Summary,
	}
	if len(book.Authors) > 0 {
		vars["authors"] = strings.Join(book.Authors, ", ")
	}
	if book.Publisher != "" {
		vars["publisher"] = book.Publisher
	}
	if !book.PubDate.IsZero() {
		vars["pubdate"] = book.PubDate.Format(DateLayout)
	}
	if book.Series != "" {
		vars["series"] = book.Series
		vars["series_index"] = formatIndex(book.SeriesIndex)
	}
	return vars
}

// Expand substitutes {name} placeholders in tmpl.
func Expand(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", &TemplateError{Detail: fmt.Sprintf("unclosed '{' at offset %d", i)}
			}
			name := tmpl[i+1 : i+1+end]
			val, ok := vars[name]
			if !ok {
				return "", &TemplateError{Placeholder: name, Available: available(vars)}
			}
			b.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", &TemplateError{Detail: fmt.Sprintf("single '}' at offset %d", i)}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Describe renders the metadata block shown next to a generated summary.
func Describe(book library.Book) string {
	vars := Variables(book)

	lines := []string{
		"Title: " + book.Title,
		"Author: " + vars["authors"],
		"Publisher: " + vars["publisher"],
		"Publication Date: " + vars["pubdate"],
	}
	if book.Series != "" {
		series := "Series: " + book.Series
		if book.SeriesIndex > 0 {
			series += " (Book " + vars["series_index"] + ")"
		}
		lines = append(lines, series)
	}
	return strings.Join(lines, "\n")
}

func formatIndex(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// available keeps the known placeholders in display order and appends any
// caller-supplied extras.
func available(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	seen := make(map[string]bool, len(vars))
	for _, p := range Placeholders {
		if _, ok := vars[p]; ok {
			out = append(out, p)
			seen[p] = true
		}
	}
	for k := range vars {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}
