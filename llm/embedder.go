package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	hfembeddings "github.com/tmc/langchaingo/embeddings/huggingface"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/agentkit-go/ragagents/config"
)

// NewEmbedder creates the embedder named in cfg.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "googleai":
		opts := []googleai.Option{googleai.WithDefaultEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
		}
		client, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: googleai embeddings: %w", err)
		}
		return embeddings.NewEmbedder(client)
	case "openai":
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: openai embeddings: %w", err)
		}
		return embeddings.NewEmbedder(client)
	case "openai-compatible":
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case "huggingface":
		e, err := hfembeddings.NewHuggingface(hfembeddings.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("llm: huggingface embeddings: %w", err)
		}
		return e, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: ollama embeddings: %w", err)
		}
		return embeddings.NewEmbedder(client)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

// OpenAIEmbedder calls any server speaking the OpenAI embeddings API, such
// as a text-embeddings-inference deployment of sentence-transformers models.
type OpenAIEmbedder struct {
	client    *goopenai.Client
	model     string
	batchSize int
}

// NewOpenAIEmbedder creates an embedder against baseURL. An empty baseURL
// targets api.openai.com.
func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIEmbedder{
		client:    goopenai.NewClientWithConfig(cfg),
		model:     model,
		batchSize: 64,
	}
}

// EmbedDocuments embeds texts in batches, preserving order.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single query.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("llm: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vecs := make([][]float32, len(data))
	for i, d := range data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
