package semanticsearch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/config"
	"github.com/agentkit-go/ragagents/llm/llmtest"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/splitter"
	"github.com/agentkit-go/ragagents/telemetry"
	"github.com/agentkit-go/ragagents/vectorstore"
)

const report = `Nike designs, develops and sells athletic footwear, apparel and equipment worldwide.

Revenue in fiscal 2023 was 51.2 billion dollars, up ten percent compared with the prior year.

Gross margin decreased by 250 basis points in 2023 due to higher product costs and markdowns.

Bab 3 pasal 4 mengatur ketentuan bangunan gedung dan persetujuan bangunan gedung.`

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(report), 0o644))

	cfg := config.Default()
	cfg.Splitter.ChunkSize = 120
	cfg.Splitter.ChunkOverlap = 20
	rec := telemetry.New(nil)
	var out bytes.Buffer
	env := &recipes.Env{
		Config:   cfg,
		Embedder: llmtest.NewEmbedder(),
		Metrics:  rec,
		Logger:   &log.NoOpLogger{},
		Out:      &out,
	}

	q := Queries{
		Search:    "bab 3 pasal 4 mengatur ketentuan bangunan gedung",
		WithScore: "revenue in fiscal 2023 was 51.2 billion dollars",
		ByVector:  "gross margin decreased by 250 basis points",
	}
	rep, err := Run(context.Background(), env, path, q)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Pages)
	assert.GreaterOrEqual(t, rep.Chunks, 4)
	assert.Len(t, rep.IDs, rep.Chunks)
	assert.Equal(t, 64, rep.VectorLen)

	assert.Contains(t, rep.Search.PageContent, "pasal 4")
	assert.Equal(t, rep.Search.PageContent, rep.Async.PageContent)
	assert.Contains(t, rep.Scored.Document.PageContent, "Revenue")
	assert.Greater(t, rep.Scored.Score, 0.0)
	assert.Contains(t, rep.ByVector.PageContent, "margin")
	_, ok := rep.Search.Metadata[splitter.MetaStartIndex]
	assert.True(t, ok)

	assert.True(t, strings.Contains(out.String(), "Generated vectors of length 64"))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Retrievals.WithLabelValues("add", "ok")))
}

// textOnlyStore behaves like the langchaingo backends, which cannot search by vector.
type textOnlyStore struct {
	vectorstore.Store
}

func (textOnlyStore) SimilaritySearchByVector(context.Context, []float32, int) ([]schema.Document, error) {
	return nil, vectorstore.ErrSearchByVectorUnsupported
}

func TestRun_BackendWithoutSearchByVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(report), 0o644))

	cfg := config.Default()
	cfg.Splitter.ChunkSize = 120
	cfg.Splitter.ChunkOverlap = 20
	cfg.Splitter.AddStartIndex = false
	cfg.VectorStore.Backend = "pgvector"
	var out bytes.Buffer
	env := &recipes.Env{
		Config:   cfg,
		Embedder: llmtest.NewEmbedder(),
		Logger:   &log.NoOpLogger{},
		Out:      &out,
		OpenStore: func(_ context.Context, vc config.VectorStoreConfig, e embeddings.Embedder) (vectorstore.Store, error) {
			assert.Equal(t, "pgvector", vc.Backend)
			return textOnlyStore{vectorstore.NewMemory(e)}, nil
		},
	}

	rep, err := Run(context.Background(), env, path, Queries{
		Search:    "bab 3 pasal 4",
		WithScore: "revenue in fiscal 2023",
		ByVector:  "gross margin",
	})
	require.NoError(t, err)
	assert.Contains(t, rep.Search.PageContent, "pasal 4")
	assert.Contains(t, rep.Scored.Document.PageContent, "Revenue")
	assert.Empty(t, rep.ByVector.PageContent)
	_, ok := rep.Search.Metadata[splitter.MetaStartIndex]
	assert.False(t, ok)
}

func TestRun_MissingFile(t *testing.T) {
	env := &recipes.Env{Config: config.Default(), Embedder: llmtest.NewEmbedder(), Logger: &log.NoOpLogger{}, Out: &bytes.Buffer{}}
	_, err := Run(context.Background(), env, filepath.Join(t.TempDir(), "missing.pdf"), DefaultQueries())
	assert.Error(t, err)
}
