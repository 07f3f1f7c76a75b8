package telemetry

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/vectorstore"
)

// Instrument wraps s so every call is counted and timed.
func (r *Recorder) Instrument(s vectorstore.Store) vectorstore.Store {
	return &instrumentedStore{Store: s, rec: r}
}

type instrumentedStore struct {
	vectorstore.Store
	rec *Recorder
}

func (s *instrumentedStore) AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error) {
	start := time.Now()
	ids, err := s.Store.AddDocuments(ctx, docs)
	s.rec.retrieval("add", time.Since(start), err)
	return ids, err
}

func (s *instrumentedStore) SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error) {
	start := time.Now()
	docs, err := s.Store.SimilaritySearch(ctx, query, k)
	s.rec.retrieval("search", time.Since(start), err)
	return docs, err
}

func (s *instrumentedStore) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]vectorstore.ScoredDocument, error) {
	start := time.Now()
	docs, err := s.Store.SimilaritySearchWithScore(ctx, query, k)
	s.rec.retrieval("search_with_score", time.Since(start), err)
	return docs, err
}

func (s *instrumentedStore) SimilaritySearchByVector(ctx context.Context, vector []float32, k int) ([]schema.Document, error) {
	start := time.Now()
	docs, err := s.Store.SimilaritySearchByVector(ctx, vector, k)
	s.rec.retrieval("search_by_vector", time.Since(start), err)
	return docs, err
}
