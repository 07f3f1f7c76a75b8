package vectorstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/smallnest/langgraphgo/rag"
	ragstore "github.com/smallnest/langgraphgo/rag/store"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/log"
)

// Memory is an in-process store scored by cosine similarity.
type Memory struct {
	mu       sync.RWMutex
	store    *ragstore.InMemoryVectorStore
	embedder embeddings.Embedder
	logger   log.Logger
}

// NewMemory creates an empty store that embeds with embedder.
func NewMemory(embedder embeddings.Embedder) *Memory {
	return &Memory{
		store:    ragstore.NewInMemoryVectorStore(rag.NewLangChainEmbedder(embedder)),
		embedder: embedder,
		logger:   log.GetDefaultLogger(),
	}
}

// FromDocuments creates a Memory store holding docs.
func FromDocuments(ctx context.Context, docs []schema.Document, embedder embeddings.Embedder) (*Memory, error) {
	m := NewMemory(embedder)
	if _, err := m.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return m, nil
}

// AddDocuments embeds all docs in one batch.
func (m *Memory) AddDocuments(ctx context.Context, docs []schema.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vecs, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed %d documents: %w", len(docs), err)
	}
	if len(vecs) != len(docs) {
		return nil, fmt.Errorf("vectorstore: embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	ids := make([]string, len(docs))
	ragDocs := make([]rag.Document, len(docs))
	for i, d := range docs {
		ids[i] = uuid.NewString()
		ragDocs[i] = rag.Document{
			ID:        ids[i],
			Content:   d.PageContent,
			Metadata:  maps.Clone(d.Metadata),
			Embedding: vecs[i],
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.AddBatch(ctx, ragDocs, vecs); err != nil {
		return nil, fmt.Errorf("vectorstore: add: %w", err)
	}
	m.logger.Debug("indexed %d documents", len(docs))
	return ids, nil
}

func (m *Memory) SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error) {
	scored, err := m.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return stripScores(scored), nil
}

func (m *Memory) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]ScoredDocument, error) {
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	return m.searchVector(ctx, vec, k, nil)
}

func (m *Memory) SimilaritySearchByVector(ctx context.Context, vector []float32, k int) ([]schema.Document, error) {
	scored, err := m.searchVector(ctx, vector, k, nil)
	if err != nil {
		return nil, err
	}
	return stripScores(scored), nil
}

// SimilaritySearchWithFilter only considers documents whose metadata
// contains every key/value pair in filter.
func (m *Memory) SimilaritySearchWithFilter(ctx context.Context, query string, k int, filter map[string]any) ([]ScoredDocument, error) {
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	return m.searchVector(ctx, vec, k, filter)
}

// Delete removes documents by id.
func (m *Memory) Delete(ctx context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(ctx, ids)
}

// Len reports the number of indexed documents.
func (m *Memory) Len(ctx context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats, err := m.store.GetStats(ctx)
	if err != nil {
		return 0
	}
	return stats.TotalDocuments
}

func (m *Memory) searchVector(ctx context.Context, vec []float32, k int, filter map[string]any) ([]ScoredDocument, error) {
	k = normalizeK(k)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		results []rag.DocumentSearchResult
		err     error
	)
	if len(filter) > 0 {
		results, err = m.store.SearchWithFilter(ctx, vec, k, filter)
	} else {
		results, err = m.store.Search(ctx, vec, k)
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	out := make([]ScoredDocument, len(results))
	for i, r := range results {
		out[i] = ScoredDocument{
			Document: schema.Document{
				PageContent: r.Document.Content,
				Metadata:    maps.Clone(r.Document.Metadata),
				Score:       float32(r.Score),
			},
			Score: r.Score,
		}
	}
	return out, nil
}
