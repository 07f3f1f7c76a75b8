// Package vectorstore indexes embedded documents and answers similarity
// queries, in memory or through a langchaingo vector store.
package vectorstore

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/schema"
)

// DefaultK is the number of results returned when k is not positive.
const DefaultK = 4

// ErrSearchByVectorUnsupported is returned by backends that only accept text queries.
var ErrSearchByVectorUnsupported = errors.New("vectorstore: search by vector not supported by backend")

// ScoredDocument pairs a document with its similarity to the query.
// Higher is more similar.
type ScoredDocument struct {
	Document schema.Document
	Score    float64
}

// Store is a searchable document index.
type Store interface {
	// AddDocuments embeds and indexes docs, returning their ids in order.
	AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error)
	SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error)
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredDocument, error)
	SimilaritySearchByVector(ctx context.Context, vector []float32, k int) ([]schema.Document, error)
}

// SearchResult is delivered by SearchAsync.
type SearchResult struct {
	Documents []schema.Document
	Err       error
}

// SearchAsync runs SimilaritySearch in a goroutine. The channel receives
// exactly one result and is then closed.
func SearchAsync(ctx context.Context, s Store, query string, k int) <-chan SearchResult {
	ch := make(chan SearchResult, 1)
	go func() {
		defer close(ch)
		docs, err := s.SimilaritySearch(ctx, query, k)
		ch <- SearchResult{Documents: docs, Err: err}
	}()
	return ch
}

// Retriever fetches a fixed number of documents per query.
type Retriever struct {
	store Store
	k     int
}

// NewRetriever wraps s. A non-positive k means DefaultK.
func NewRetriever(s Store, k int) *Retriever {
	return &Retriever{store: s, k: normalizeK(k)}
}

// Retrieve returns the k documents most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]schema.Document, error) {
	return r.store.SimilaritySearch(ctx, query, r.k)
}

// GetRelevantDocuments implements langchaingo's schema.Retriever.
func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	return r.Retrieve(ctx, query)
}

// K reports the number of documents per query.
func (r *Retriever) K() int { return r.k }

func normalizeK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	return k
}

func stripScores(scored []ScoredDocument) []schema.Document {
	docs := make([]schema.Document, len(scored))
	for i, s := range scored {
		docs[i] = s.Document
	}
	return docs
}
