package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/agentkit-go/ragagents/message"
	"github.com/agentkit-go/ragagents/tool"
)

// HasToolCalls reports whether the last message is a model message that
// requests tool calls.
func HasToolCalls(msgs []llms.MessageContent) bool {
	last, ok := message.Last(msgs)
	return ok && last.Role == llms.ChatMessageTypeAI && len(message.ToolCalls(last)) > 0
}

// ToolNode returns a node body that runs every tool call of the last model
// message concurrently and answers with one tool message per call, in call
// order. Tool failures become "Error: ..." messages.
func ToolNode(tools []tool.Tool) func(ctx context.Context, msgs []llms.MessageContent) ([]llms.MessageContent, error) {
	byName := tool.ByName(tools)
	return func(ctx context.Context, msgs []llms.MessageContent) ([]llms.MessageContent, error) {
		if !HasToolCalls(msgs) {
			return nil, fmt.Errorf("tool node: last message has no tool calls")
		}
		last, _ := message.Last(msgs)
		calls := message.ToolCalls(last)
		out := make([]llms.MessageContent, len(calls))
		var g errgroup.Group
		for i, c := range calls {
			if c.FunctionCall == nil {
				out[i] = message.Tool(c.ID, "", "Error: tool call without a function")
				continue
			}
			g.Go(func() error {
				out[i] = message.Tool(c.ID, c.FunctionCall.Name, runTool(ctx, byName, c.FunctionCall.Name, c.FunctionCall.Arguments))
				return nil
			})
		}
		_ = g.Wait()
		return out, nil
	}
}

func runTool(ctx context.Context, byName map[string]tool.Tool, name, args string) string {
	t, ok := byName[name]
	if !ok {
		return fmt.Sprintf("Error: tool %q not found", name)
	}
	res, err := t.Run(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return res.Content
}

// StepFunc adapts a function to the graph callback interface. Only graph
// steps are forwarded: fn receives the node that ran and the merged state.
type StepFunc func(ctx context.Context, node string, state any)

func (f StepFunc) OnGraphStep(ctx context.Context, node string, state any) { f(ctx, node, state) }

func (f StepFunc) OnChainStart(context.Context, map[string]any, map[string]any, string, *string, []string, map[string]any) {
}
func (f StepFunc) OnChainEnd(context.Context, map[string]any, string) {}
func (f StepFunc) OnChainError(context.Context, error, string)        {}
func (f StepFunc) OnToolStart(context.Context, map[string]any, string, string, *string, []string, map[string]any) {
}
func (f StepFunc) OnToolEnd(context.Context, string, string)  {}
func (f StepFunc) OnToolError(context.Context, error, string) {}
func (f StepFunc) OnLLMStart(context.Context, map[string]any, []string, string, *string, []string, map[string]any) {
}
func (f StepFunc) OnLLMEnd(context.Context, any, string)     {}
func (f StepFunc) OnLLMError(context.Context, error, string) {}
func (f StepFunc) OnRetrieverStart(context.Context, map[string]any, string, string, *string, []string, map[string]any) {
}
func (f StepFunc) OnRetrieverEnd(context.Context, []any, string)   {}
func (f StepFunc) OnRetrieverError(context.Context, error, string) {}

// stepTracker computes per-step message deltas for Stream.
type stepTracker struct {
	mu   sync.Mutex
	seen int
	emit func(Event)
}

func newStepListener(seen int, emit func(Event)) StepFunc {
	t := &stepTracker{seen: seen, emit: emit}
	return t.step
}

func (t *stepTracker) step(_ context.Context, node string, state any) {
	st, ok := state.(State)
	if !ok {
		return
	}
	t.mu.Lock()
	var update []llms.MessageContent
	if len(st.Messages) > t.seen {
		update = st.Messages[t.seen:]
	}
	t.seen = len(st.Messages)
	t.mu.Unlock()
	t.emit(Event{Node: node, Update: update, State: st})
}
