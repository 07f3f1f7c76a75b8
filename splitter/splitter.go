// Package splitter chunks documents with langchaingo's recursive character
// splitter, optionally measuring length in tiktoken tokens.
package splitter

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// MetaStartIndex is the metadata key holding a chunk's character offset in
// its source document.
const MetaStartIndex = "start_index"

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits text into overlapping chunks.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
	lenFunc    func(string) int
	encoding   string
	startIndex bool
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithTokenEncoder measures chunk length in tokens of the named tiktoken
// encoding, e.g. "cl100k_base".
func WithTokenEncoder(encoding string) Option {
	return func(s *Splitter) { s.encoding = encoding }
}

// WithLengthFunc measures chunk length with fn.
func WithLengthFunc(fn func(string) int) Option {
	return func(s *Splitter) { s.lenFunc = fn }
}

// WithStartIndex records MetaStartIndex on each chunk.
func WithStartIndex() Option {
	return func(s *Splitter) { s.startIndex = true }
}

// WithSeparators overrides DefaultSeparators.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) { s.separators = seps }
}

// Recursive creates a recursive character splitter. Length is counted in
// runes unless a token encoder or length function is set.
func Recursive(chunkSize, overlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("splitter: chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("splitter: overlap %d must be in [0, %d)", overlap, chunkSize)
	}
	s := &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
		lenFunc:    utf8.RuneCountInString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.encoding != "" {
		enc, err := tiktoken.GetEncoding(s.encoding)
		if err != nil {
			return nil, fmt.Errorf("splitter: tiktoken encoding %q: %w", s.encoding, err)
		}
		s.lenFunc = func(text string) int { return len(enc.Encode(text, nil, nil)) }
	}
	return s, nil
}

func (s *Splitter) textSplitter() textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.chunkSize),
		textsplitter.WithChunkOverlap(s.overlap),
		textsplitter.WithSeparators(s.separators),
		textsplitter.WithLenFunc(s.lenFunc),
	)
}

// SplitText splits a single text.
func (s *Splitter) SplitText(text string) ([]string, error) {
	chunks, err := s.textSplitter().SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitter: %w", err)
	}
	return chunks, nil
}

// SplitDocuments splits every document. Each chunk carries a copy of its
// source metadata.
func (s *Splitter) SplitDocuments(docs []schema.Document) ([]schema.Document, error) {
	var out []schema.Document
	for _, doc := range docs {
		chunks, err := s.SplitText(doc.PageContent)
		if err != nil {
			return nil, err
		}
		searchFrom := 0
		for _, chunk := range chunks {
			meta := maps.Clone(doc.Metadata)
			if meta == nil {
				meta = map[string]any{}
			}
			if s.startIndex {
				idx := locate(doc.PageContent, chunk, searchFrom)
				if idx >= 0 {
					meta[MetaStartIndex] = utf8.RuneCountInString(doc.PageContent[:idx])
					searchFrom = idx + 1
				} else {
					meta[MetaStartIndex] = -1
				}
			}
			out = append(out, schema.Document{PageContent: chunk, Metadata: meta})
		}
	}
	return out, nil
}

// locate finds chunk at or after from, falling back to the first
// occurrence anywhere.
func locate(text, chunk string, from int) int {
	if from < len(text) {
		if i := strings.Index(text[from:], chunk); i >= 0 {
			return from + i
		}
	}
	return strings.Index(text, chunk)
}
