// Package recipes holds the shared environment of the runnable recipes: the
// chat model, the embedder, the checkpointer and the vector store backend,
// built once from configuration.
package recipes

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/agent"
	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/config"
	"github.com/agentkit-go/ragagents/llm"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/telemetry"
	"github.com/agentkit-go/ragagents/vectorstore"
)

// Env carries the collaborators every recipe needs.
type Env struct {
	Config   config.Config
	Model    llms.Model
	Embedder embeddings.Embedder
	Saver    checkpoint.Saver
	Metrics  *telemetry.Recorder
	Logger   log.Logger
	Out      io.Writer
	// OpenStore opens the vector store. Nil means vectorstore.Open.
	OpenStore func(ctx context.Context, cfg config.VectorStoreConfig, embedder embeddings.Embedder) (vectorstore.Store, error)
}

// FromConfig builds the model, embedder and checkpointer described by cfg.
// rec may be nil.
func FromConfig(ctx context.Context, cfg *config.Config, rec *telemetry.Recorder) (*Env, error) {
	model, err := llm.NewChatModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	saver, err := checkpoint.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpointer: %w", err)
	}
	return &Env{
		Config:   *cfg,
		Model:    model,
		Embedder: embedder,
		Saver:    saver,
		Metrics:  rec,
		Logger:   log.GetDefaultLogger(),
		Out:      os.Stdout,
	}, nil
}

// NewStore opens the configured vector store, instrumented when metrics are on.
func (e *Env) NewStore(ctx context.Context) (vectorstore.Store, error) {
	open := e.OpenStore
	if open == nil {
		open = vectorstore.Open
	}
	s, err := open(ctx, e.Config.VectorStore, e.Embedder)
	if err != nil {
		return nil, err
	}
	if e.Metrics != nil {
		s = e.Metrics.Instrument(s)
	}
	return s, nil
}

// AgentOptions are the options shared by every agent a recipe builds.
func (e *Env) AgentOptions() []agent.Option {
	opts := []agent.Option{agent.WithLogger(e.Log())}
	if e.Metrics != nil {
		opts = append(opts, agent.WithObserver(e.Metrics))
	}
	return opts
}

// Writer returns Out, or stdout when unset.
func (e *Env) Writer() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// Log returns Logger, or the package default when unset.
func (e *Env) Log() log.Logger { return log.OrDefault(e.Logger) }
