package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/log"
)

// PDFLoader loads one document per page of a PDF file.
type PDFLoader struct {
	path   string
	logger log.Logger
}

// NewPDFLoader creates a loader for the file at path.
func NewPDFLoader(path string, logger log.Logger) *PDFLoader {
	return &PDFLoader{path: path, logger: log.OrDefault(logger)}
}

// Load extracts the plain text of each page. Pages are numbered from 0 in
// the page metadata and from 1 in page_label.
func (l *PDFLoader) Load(ctx context.Context) ([]schema.Document, error) {
	f, r, err := pdf.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("document: open pdf %s: %w", l.path, err)
	}
	defer f.Close()

	total := r.NumPage()
	docs := make([]schema.Document, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		text := ""
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				l.logger.Warn("pdf %s: page %d: %v", l.path, i, err)
				text = ""
			}
		}
		docs = append(docs, schema.Document{
			PageContent: strings.TrimSpace(text),
			Metadata: map[string]any{
				MetaSource:     l.path,
				MetaPage:       i - 1,
				MetaPageLabel:  strconv.Itoa(i),
				MetaTotalPages: total,
			},
		})
	}
	l.logger.Info("loaded %d pages from %s", total, l.path)
	return docs, nil
}
