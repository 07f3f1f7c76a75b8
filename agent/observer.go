package agent

import (
	"context"
	"time"
)

// Observer receives timing for model and tool calls and interrupt counts.
// Implementations must be safe for concurrent use: tool calls of one step
// run in parallel.
type Observer interface {
	ModelCall(ctx context.Context, agent string, elapsed time.Duration, err error)
	ToolCall(ctx context.Context, agent, tool string, elapsed time.Duration, err error)
	Interrupted(ctx context.Context, agent string, pending int)
}

type nopObserver struct{}

func (nopObserver) ModelCall(context.Context, string, time.Duration, error)         {}
func (nopObserver) ToolCall(context.Context, string, string, time.Duration, error) {}
func (nopObserver) Interrupted(context.Context, string, int)                        {}
