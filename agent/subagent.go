package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/langgraphgo/graph"

	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/tool"
)

// RequestArgs is the argument object of an agent exposed as a tool.
type RequestArgs struct {
	Request string `json:"request" jsonschema:"the request in natural language"`
}

// AsTool exposes sub as a tool taking a natural language request and
// answering with the sub-agent's final message.
//
// The sub-agent runs on its own thread, derived from the caller's thread and
// tool call id, using the caller's checkpointer when it has none. Interrupts
// raised by the sub-agent are returned to the caller's run, and resuming the
// caller resumes the sub-agent.
func AsTool(sub *Agent, name, description string) (tool.Tool, error) {
	if name == "" {
		name = sub.name
	}
	t, err := tool.New(name, description, func(ctx context.Context, args RequestArgs) (string, error) {
		cfg := RunConfig{ThreadID: subThread(ctx, name)}
		if cfg.ThreadID == "" {
			st, err := sub.Invoke(ctx, Ask(args.Request), cfg)
			if err != nil {
				return "", err
			}
			return st.Answer(), nil
		}

		latest, err := sub.latest(ctx, cfg.ThreadID)
		if err != nil {
			return "", err
		}
		var st State
		switch {
		case latest != nil && latest.Metadata[checkpoint.MetaStatus] == StatusInterrupted:
			cmd, _ := graph.GetResumeValue(ctx).(Command)
			st, err = sub.Resume(ctx, cmd, cfg)
		case latest != nil && ToolCallID(ctx) != "":
			// Answered before the caller was interrupted; the step is being replayed.
			st, err = checkpoint.DecodeState[State](latest)
		default:
			st, err = sub.Invoke(ctx, Ask(args.Request), cfg)
		}
		if err != nil {
			return "", err
		}
		return st.Answer(), nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// subThread derives the sub-agent thread for the current tool call. It is
// empty when the caller runs without a thread.
func subThread(ctx context.Context, name string) string {
	parent := ThreadID(ctx)
	if parent == "" {
		return ""
	}
	call := ToolCallID(ctx)
	if call == "" {
		return parent + "/" + name
	}
	return fmt.Sprintf("%s/%s/%s", parent, name, call)
}

// latest returns the newest checkpoint of threadID, or nil when there is
// none or no checkpointer is available.
func (a *Agent) latest(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	saver := a.saverFor(ctx)
	if saver == nil {
		return nil, nil
	}
	cp, err := saver.Latest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agent %s: load thread %s: %w", a.name, threadID, err)
	}
	return cp, nil
}
