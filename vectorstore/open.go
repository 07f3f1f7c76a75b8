package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores/pgvector"
	"github.com/tmc/langchaingo/vectorstores/redisvector"
	"github.com/tmc/langchaingo/vectorstores/weaviate"

	"github.com/agentkit-go/ragagents/config"
)

// Open creates the backend named in cfg.
func Open(ctx context.Context, cfg config.VectorStoreConfig, embedder embeddings.Embedder) (Store, error) {
	collection := cfg.Collection
	if collection == "" {
		collection = "ragagents"
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(embedder), nil
	case "pgvector":
		s, err := pgvector.New(ctx,
			pgvector.WithConnectionURL(cfg.URL),
			pgvector.WithCollectionName(collection),
			pgvector.WithEmbedder(embedder),
		)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: pgvector: %w", err)
		}
		return NewLangChain(s), nil
	case "redis":
		s, err := redisvector.New(ctx,
			redisvector.WithConnectionURL(cfg.URL),
			redisvector.WithIndexName(collection, true),
			redisvector.WithEmbedder(embedder),
		)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: redis: %w", err)
		}
		return NewLangChain(s), nil
	case "weaviate":
		u, err := url.Parse(cfg.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("vectorstore: weaviate url %q: want scheme://host[:port]", cfg.URL)
		}
		s, err := weaviate.New(
			weaviate.WithScheme(u.Scheme),
			weaviate.WithHost(u.Host),
			weaviate.WithIndexName(className(collection)),
			weaviate.WithEmbedder(embedder),
		)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: weaviate: %w", err)
		}
		return NewLangChain(s), nil
	}
	return nil, fmt.Errorf("vectorstore: unknown backend %q", cfg.Backend)
}

// className turns a collection name into a Weaviate class name, which
// must start with an upper-case letter.
func className(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
