// Package ragagent is a retrieval agent over a single blog post. Context for
// the latest message is injected into the system prompt and the agent may
// also look things up through retrieve_context.
package ragagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/agent"
	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/document"
	"github.com/agentkit-go/ragagents/message"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/splitter"
	"github.com/agentkit-go/ragagents/tool"
	"github.com/agentkit-go/ragagents/vectorstore"
)

// PostURL is the indexed blog post.
const PostURL = "https://lilianweng.github.io/posts/2023-06-23-agent/"

// Query is the question the recipe asks.
const Query = "What is task decomposition?"

const contextPrefix = "You are a helpful assistant. Use the following context in your response:\n\n"

// Classes limit the page to the post itself.
var Classes = []string{"post-content", "post-title", "post-header"}

// Index loads urls, splits them into 1000/200 chunks and adds them to a new
// store.
func Index(ctx context.Context, env *recipes.Env, urls []string, opts ...document.WebOption) (vectorstore.Store, error) {
	opts = append([]document.WebOption{
		document.WithClasses(Classes...),
		document.WithWebLogger(env.Log()),
	}, opts...)
	docs, err := document.NewWebLoader(urls, opts...).Load(ctx)
	if err != nil {
		return nil, err
	}
	split, err := splitter.Recursive(1000, 200)
	if err != nil {
		return nil, err
	}
	chunks, err := split.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}
	store, err := env.NewStore(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := store.AddDocuments(ctx, chunks); err != nil {
		return nil, err
	}
	env.Log().Info("indexed %d chunks from %d pages", len(chunks), len(docs))
	return store, nil
}

// PromptWithContext searches store for the text of the last message and
// prepends a system message carrying the hits.
func PromptWithContext(store vectorstore.Store) agent.PromptFunc {
	return func(ctx context.Context, s agent.State) ([]llms.MessageContent, error) {
		var query string
		if last, ok := s.Last(); ok {
			query = message.Text(last)
		}
		docs, err := store.SimilaritySearch(ctx, query, vectorstore.DefaultK)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
		parts := make([]string, len(docs))
		for i, d := range docs {
			parts[i] = d.PageContent
		}
		sys := message.System(contextPrefix + strings.Join(parts, "\n\n"))
		return append([]llms.MessageContent{sys}, s.Messages...), nil
	}
}

// New builds the agent with retrieve_context (k=2) and the context prompt.
func New(model llms.Model, store vectorstore.Store, saver checkpoint.Saver, opts ...agent.Option) (*agent.Agent, error) {
	retrieve, err := tool.Context(store, 2)
	if err != nil {
		return nil, err
	}
	opts = append([]agent.Option{
		agent.WithName("rag_agent"),
		agent.WithPrompt(PromptWithContext(store)),
		agent.WithCheckpointer(saver),
	}, opts...)
	return agent.New(model, []tool.Tool{retrieve}, opts...)
}

// Run indexes the post, asks Query on thread 1 and prints the newest message
// after every step.
func Run(ctx context.Context, env *recipes.Env, urls []string, opts ...document.WebOption) (agent.State, error) {
	if len(urls) == 0 {
		urls = []string{PostURL}
	}
	store, err := Index(ctx, env, urls, opts...)
	if err != nil {
		return agent.State{}, err
	}
	saver := env.Saver
	if saver == nil {
		saver = checkpoint.NewMemory()
	}
	rag, err := New(env.Model, store, saver, env.AgentOptions()...)
	if err != nil {
		return agent.State{}, err
	}

	out := env.Writer()
	in := agent.Ask(Query)
	if err := message.Pretty(out, in.Messages[0]); err != nil {
		return agent.State{}, err
	}
	var final agent.State
	for ev := range rag.Stream(ctx, in, agent.RunConfig{ThreadID: "1"}) {
		if ev.Done {
			if ev.Err != nil {
				return ev.State, ev.Err
			}
			final = ev.State
			break
		}
		if last, ok := ev.State.Last(); ok {
			if err := message.Pretty(out, last); err != nil {
				return agent.State{}, err
			}
		}
	}
	return final, nil
}
