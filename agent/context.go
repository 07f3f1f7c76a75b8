package agent

import (
	"context"
	"encoding/json"

	"github.com/agentkit-go/ragagents/checkpoint"
)

type (
	scopeKey    struct{}
	toolCallKey struct{}
	runtimeKey  struct{}
)

// scope is what a running agent hands down to its tools: the thread being
// run and the checkpointer, which sub-agents inherit.
type scope struct {
	threadID string
	saver    checkpoint.Saver
}

func withScope(ctx context.Context, s scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withToolCall(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, toolCallKey{}, id)
}

// ToolCallID returns the id of the tool call being executed, if any.
func ToolCallID(ctx context.Context) string {
	id, _ := ctx.Value(toolCallKey{}).(string)
	return id
}

// ThreadID returns the thread of the running agent, if any.
func ThreadID(ctx context.Context) string {
	return scopeFrom(ctx).threadID
}

// WithRuntime attaches a run-scoped value, such as the calling user, that
// tools and prompts read back with RuntimeFrom.
func WithRuntime(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, runtimeKey{}, v)
}

// RuntimeFrom returns the runtime value of ctx if it has type T.
func RuntimeFrom[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(runtimeKey{}).(T)
	return v, ok
}

// decodeMeta reads a checkpoint metadata value. Backends that store JSON
// hand back generic maps and slices, so those are converted through JSON.
func decodeMeta[T any](v any) T {
	var out T
	if v == nil {
		return out
	}
	if t, ok := v.(T); ok {
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}
