// Package document loads web pages, PDFs and local files into
// langchaingo schema.Documents.
package document

import (
	"context"
	"maps"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

// Metadata keys set by the loaders.
const (
	MetaSource     = "source"
	MetaTitle      = "title"
	MetaLanguage   = "language"
	MetaPage       = "page"
	MetaPageLabel  = "page_label"
	MetaTotalPages = "total_pages"
)

// Loader produces documents from some source.
type Loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]schema.Document, error)

func (f LoaderFunc) Load(ctx context.Context) ([]schema.Document, error) { return f(ctx) }

// Static returns docs unchanged. Metadata maps are copied so callers can
// mutate the results.
func Static(docs ...schema.Document) Loader {
	return LoaderFunc(func(ctx context.Context) ([]schema.Document, error) {
		out := make([]schema.Document, len(docs))
		for i, d := range docs {
			out[i] = schema.Document{PageContent: d.PageContent, Metadata: maps.Clone(d.Metadata), Score: d.Score}
			if out[i].Metadata == nil {
				out[i].Metadata = map[string]any{}
			}
		}
		return out, nil
	})
}

// Concat loads from every loader in order.
func Concat(loaders ...Loader) Loader {
	return LoaderFunc(func(ctx context.Context) ([]schema.Document, error) {
		var all []schema.Document
		for _, l := range loaders {
			docs, err := l.Load(ctx)
			if err != nil {
				return nil, err
			}
			all = append(all, docs...)
		}
		return all, nil
	})
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	spaces     = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// normalizeText trims each line and collapses runs of blank lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaces.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}
