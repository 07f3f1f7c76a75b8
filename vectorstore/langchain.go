package vectorstore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// LangChain adapts a langchaingo vector store. Scores are whatever the
// backend reports in schema.Document.Score.
type LangChain struct {
	store vectorstores.VectorStore
}

// NewLangChain wraps s.
func NewLangChain(s vectorstores.VectorStore) *LangChain {
	return &LangChain{store: s}
}

func (l *LangChain) AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error) {
	ids, err := l.store.AddDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: add: %w", err)
	}
	return ids, nil
}

func (l *LangChain) SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error) {
	docs, err := l.store.SimilaritySearch(ctx, query, normalizeK(k))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	return docs, nil
}

func (l *LangChain) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	docs, err := l.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredDocument, len(docs))
	for i, d := range docs {
		out[i] = ScoredDocument{Document: d, Score: float64(d.Score)}
	}
	return out, nil
}

// SimilaritySearchByVector always fails: the langchaingo interface has no
// vector query.
func (l *LangChain) SimilaritySearchByVector(ctx context.Context, vector []float32, k int) ([]schema.Document, error) {
	return nil, ErrSearchByVectorUnsupported
}
