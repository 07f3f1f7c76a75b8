// Package semanticsearch indexes a PDF and runs the four similarity search
// flavours against it.
package semanticsearch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/document"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/splitter"
	"github.com/agentkit-go/ragagents/vectorstore"
)

// DefaultPath is the document the recipe was written for.
const DefaultPath = "data/PP Nomor 18 Tahun 2021.pdf"

var errNoResults = errors.New("search returned no documents")

// Queries are the questions asked of the index.
type Queries struct {
	Search    string
	WithScore string
	ByVector  string
}

// DefaultQueries returns the recipe questions.
func DefaultQueries() Queries {
	return Queries{
		Search:    "Apa isi bab 3 pasal 4?",
		WithScore: "What was Nike's revenue in 2023?",
		ByVector:  "How were Nike's margins impacted in 2023?",
	}
}

// Report collects what the recipe found.
type Report struct {
	Pages     int
	Chunks    int
	VectorLen int
	IDs       []string
	Search    schema.Document
	Async     schema.Document
	Scored    vectorstore.ScoredDocument
	ByVector  schema.Document
}

// Run loads path, splits it into chunks, embeds and indexes them, then
// searches. Chunk size, overlap and start indexes come from the splitter
// config. Backends without search by vector leave Report.ByVector empty.
func Run(ctx context.Context, env *recipes.Env, path string, q Queries) (*Report, error) {
	out := env.Writer()
	logger := env.Log()

	docs, err := document.NewFileLoader(path, logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: no pages", path)
	}
	rep := &Report{Pages: len(docs)}
	fmt.Fprintln(out, len(docs))
	fmt.Fprintf(out, "%s\n\n", truncate(docs[0].PageContent, 200))
	fmt.Fprintln(out, docs[0].Metadata)

	var splitOpts []splitter.Option
	if env.Config.Splitter.AddStartIndex {
		splitOpts = append(splitOpts, splitter.WithStartIndex())
	}
	split, err := splitter.Recursive(env.Config.Splitter.ChunkSize, env.Config.Splitter.ChunkOverlap, splitOpts...)
	if err != nil {
		return nil, err
	}
	chunks, err := split.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}
	rep.Chunks = len(chunks)
	fmt.Fprintln(out, len(chunks))
	if len(chunks) < 2 {
		return nil, fmt.Errorf("%s: need at least two chunks, got %d", path, len(chunks))
	}

	v1, err := env.Embedder.EmbedQuery(ctx, chunks[0].PageContent)
	if err != nil {
		return nil, err
	}
	v2, err := env.Embedder.EmbedQuery(ctx, chunks[1].PageContent)
	if err != nil {
		return nil, err
	}
	if len(v1) != len(v2) {
		return nil, fmt.Errorf("embedding lengths differ: %d and %d", len(v1), len(v2))
	}
	rep.VectorLen = len(v1)
	fmt.Fprintf(out, "Generated vectors of length %d\n\n", len(v1))
	fmt.Fprintln(out, v1[:min(10, len(v1))])

	store, err := env.NewStore(ctx)
	if err != nil {
		return nil, err
	}
	if rep.IDs, err = store.AddDocuments(ctx, chunks); err != nil {
		return nil, err
	}

	results, err := store.SimilaritySearch(ctx, q.Search, vectorstore.DefaultK)
	if err != nil {
		return nil, err
	}
	if rep.Search, err = first(results); err != nil {
		return nil, err
	}
	printDoc(out, rep.Search)

	res := <-vectorstore.SearchAsync(ctx, store, q.Search, vectorstore.DefaultK)
	if res.Err != nil {
		return nil, res.Err
	}
	if rep.Async, err = first(res.Documents); err != nil {
		return nil, err
	}
	printDoc(out, rep.Async)

	scored, err := store.SimilaritySearchWithScore(ctx, q.WithScore, vectorstore.DefaultK)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, errNoResults
	}
	rep.Scored = scored[0]
	fmt.Fprintf(out, "Score: %v\n\n", rep.Scored.Score)
	printDoc(out, rep.Scored.Document)

	vec, err := env.Embedder.EmbedQuery(ctx, q.ByVector)
	if err != nil {
		return nil, err
	}
	byVec, err := store.SimilaritySearchByVector(ctx, vec, vectorstore.DefaultK)
	if errors.Is(err, vectorstore.ErrSearchByVectorUnsupported) {
		logger.Warn("semantic search: %s backend cannot search by vector, skipping", backendName(env))
		return rep, nil
	}
	if err != nil {
		return nil, err
	}
	if rep.ByVector, err = first(byVec); err != nil {
		return nil, err
	}
	printDoc(out, rep.ByVector)
	return rep, nil
}

func backendName(env *recipes.Env) string {
	if b := env.Config.VectorStore.Backend; b != "" {
		return b
	}
	return "memory"
}

func first(docs []schema.Document) (schema.Document, error) {
	if len(docs) == 0 {
		return schema.Document{}, errNoResults
	}
	return docs[0], nil
}

func printDoc(w io.Writer, d schema.Document) {
	fmt.Fprintf(w, "page_content=%q metadata=%v\n", d.PageContent, d.Metadata)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
