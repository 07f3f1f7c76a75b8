package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/vectorstore"
)

// QueryArgs is the argument object of retrieval tools.
type QueryArgs struct {
	Query string `json:"query" jsonschema:"query to look up in the document index"`
}

// Retriever exposes r as a tool taking a query. Page contents are joined
// with blank lines and the documents are returned as the artifact.
func Retriever(r schema.Retriever, name, description string) (Tool, error) {
	t, err := NewWithArtifact(name, description, func(ctx context.Context, args QueryArgs) (Result, error) {
		docs, err := r.GetRelevantDocuments(ctx, args.Query)
		if err != nil {
			return Result{}, err
		}
		parts := make([]string, len(docs))
		for i, d := range docs {
			parts[i] = d.PageContent
		}
		return Result{Content: strings.Join(parts, "\n\n"), Artifact: docs}, nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Context is the retrieve_context tool: the k most similar documents
// rendered with their metadata.
func Context(store vectorstore.Store, k int) (Tool, error) {
	t, err := NewWithArtifact("retrieve_context", "Retrieve information to help answer a query.",
		func(ctx context.Context, args QueryArgs) (Result, error) {
			docs, err := store.SimilaritySearch(ctx, args.Query, k)
			if err != nil {
				return Result{}, err
			}
			return Result{Content: Serialize(docs), Artifact: docs}, nil
		})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Serialize renders docs as "Source: <metadata>\nContent: <text>" blocks
// separated by blank lines.
func Serialize(docs []schema.Document) string {
	blocks := make([]string, len(docs))
	for i, d := range docs {
		md := d.Metadata
		if md == nil {
			md = map[string]any{}
		}
		meta, err := json.Marshal(md)
		if err != nil {
			meta = []byte(fmt.Sprint(md))
		}
		blocks[i] = fmt.Sprintf("Source: %s\nContent: %s", meta, d.PageContent)
	}
	return strings.Join(blocks, "\n\n")
}
