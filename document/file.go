package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/log"
)

// FileLoader loads a local file, choosing a parser by extension.
// Unknown extensions are read as plain text.
type FileLoader struct {
	path   string
	logger log.Logger
}

// NewFileLoader creates a loader for path.
func NewFileLoader(path string, logger log.Logger) *FileLoader {
	return &FileLoader{path: path, logger: log.OrDefault(logger)}
}

func (l *FileLoader) Load(ctx context.Context) ([]schema.Document, error) {
	ext := strings.ToLower(filepath.Ext(l.path))
	if ext == ".pdf" {
		return NewPDFLoader(l.path, l.logger).Load(ctx)
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", l.path, err)
	}
	meta := map[string]any{MetaSource: l.path}

	var text string
	switch ext {
	case ".md", ".markdown":
		text, err = htmlText(markdown.ToHTML(data, nil, nil), meta)
	case ".html", ".htm":
		text, err = htmlText(data, meta)
	default:
		text = string(data)
	}
	if err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", l.path, err)
	}
	return []schema.Document{{PageContent: normalizeText(text), Metadata: meta}}, nil
}

func htmlText(html []byte, meta map[string]any) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta[MetaTitle] = title
	} else if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		meta[MetaTitle] = h1
	}
	doc.Find("script, style").Remove()
	// block elements need a break or adjacent paragraphs run together
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, pre, br, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return doc.Text(), nil
}
