package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/llm"
)

// DefaultDescriptionPrefix introduces every action request description.
const DefaultDescriptionPrefix = "Tool execution requires approval"

// ErrInvalidDecision is returned when a resume command does not match the
// pending interrupt.
var ErrInvalidDecision = errors.New("invalid human decision")

// HITLConfig lists the tools that need a human decision before they run.
type HITLConfig struct {
	InterruptOn       map[string]bool
	DescriptionPrefix string
}

func (c *HITLConfig) guards(name string) bool {
	return c != nil && c.InterruptOn[name]
}

// DecisionType is the reviewer's verdict on one action request.
type DecisionType string

const (
	DecisionApprove DecisionType = "approve"
	DecisionEdit    DecisionType = "edit"
	DecisionReject  DecisionType = "reject"
)

// Decision answers one ActionRequest, in request order.
type Decision struct {
	Type DecisionType `json:"type"`
	// EditedArgs replaces the call arguments when Type is edit.
	EditedArgs map[string]any `json:"edited_args,omitempty"`
	// Message is sent back to the model when Type is reject.
	Message string `json:"message,omitempty"`
}

// ActionRequest describes a tool call awaiting review.
type ActionRequest struct {
	Name        string         `json:"name"`
	Args        map[string]any `json:"args"`
	Description string         `json:"description"`
}

// Interrupt is a pending review. IDs are derived from the thread, the agent
// and the tool call ids, so re-running the same step yields the same ID.
type Interrupt struct {
	ID             string          `json:"id"`
	Agent          string          `json:"agent,omitempty"`
	ActionRequests []ActionRequest `json:"action_requests"`
}

// Command resumes an interrupted thread with decisions keyed by interrupt ID.
type Command struct {
	Resume map[string][]Decision
}

// ApproveAll builds a Command approving every request of every interrupt.
func ApproveAll(interrupts []Interrupt) Command {
	cmd := Command{Resume: make(map[string][]Decision, len(interrupts))}
	for _, it := range interrupts {
		ds := make([]Decision, len(it.ActionRequests))
		for i := range ds {
			ds[i] = Decision{Type: DecisionApprove}
		}
		cmd.Resume[it.ID] = ds
	}
	return cmd
}

// InterruptError is returned by Invoke and Resume when the run stopped for
// human review. The thread can be continued with Resume.
type InterruptError struct {
	Interrupts []Interrupt
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("agent interrupted: %d pending review(s)", len(e.Interrupts))
}

// plannedCall is a tool call after review.
type plannedCall struct {
	call      llms.ToolCall
	args      string
	rejection string
}

func interruptID(threadID, agentName string, calls []llms.ToolCall) string {
	ids := make([]string, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	key := threadID + "\x00" + agentName + "\x00" + strings.Join(ids, "\x00")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// review applies human decisions to the guarded calls. When no decision for
// this step is available it raises a node interrupt.
func (a *Agent) review(ctx context.Context, calls []llms.ToolCall) ([]plannedCall, error) {
	plan := make([]plannedCall, len(calls))
	var guarded []int
	for i, c := range calls {
		if c.FunctionCall == nil {
			c.FunctionCall = &llms.FunctionCall{}
			calls[i] = c
		}
		plan[i] = plannedCall{call: c, args: c.FunctionCall.Arguments}
		if a.hitl.guards(c.FunctionCall.Name) {
			guarded = append(guarded, i)
		}
	}
	if len(guarded) == 0 {
		return plan, nil
	}

	pending := Interrupt{
		ID:    interruptID(scopeFrom(ctx).threadID, a.name, calls),
		Agent: a.name,
	}
	for _, i := range guarded {
		pending.ActionRequests = append(pending.ActionRequests, a.actionRequest(calls[i]))
	}

	resumed, err := graph.Interrupt(ctx, []Interrupt{pending})
	if err != nil {
		return nil, err
	}
	cmd, _ := resumed.(Command)
	decisions, ok := cmd.Resume[pending.ID]
	if !ok {
		// A resume value meant for another interrupt.
		return nil, &graph.NodeInterrupt{Node: nodeTools, Value: []Interrupt{pending}}
	}
	if len(decisions) != len(guarded) {
		return nil, fmt.Errorf("%w: interrupt %s has %d action requests, got %d decisions",
			ErrInvalidDecision, pending.ID, len(guarded), len(decisions))
	}

	for n, i := range guarded {
		d := decisions[n]
		switch d.Type {
		case DecisionApprove:
		case DecisionEdit:
			args, err := json.Marshal(d.EditedArgs)
			if err != nil {
				return nil, fmt.Errorf("%w: edited args for %s: %v", ErrInvalidDecision, calls[i].FunctionCall.Name, err)
			}
			plan[i].args = string(args)
		case DecisionReject:
			plan[i].rejection = d.Message
			if plan[i].rejection == "" {
				plan[i].rejection = fmt.Sprintf("User rejected the tool call for `%s` with id %s",
					calls[i].FunctionCall.Name, calls[i].ID)
			}
		default:
			return nil, fmt.Errorf("%w: unknown decision type %q", ErrInvalidDecision, d.Type)
		}
	}
	a.logger.Info("agent %s: applied %d human decision(s) for interrupt %s", a.name, len(decisions), pending.ID)
	return plan, nil
}

func (a *Agent) actionRequest(c llms.ToolCall) ActionRequest {
	args, err := llm.ParseJSON[map[string]any](c.FunctionCall.Arguments)
	if err != nil || args == nil {
		args = map[string]any{}
	}
	prefix := a.hitl.DescriptionPrefix
	if prefix == "" {
		prefix = DefaultDescriptionPrefix
	}
	return ActionRequest{
		Name:        c.FunctionCall.Name,
		Args:        args,
		Description: fmt.Sprintf("%s\n\nTool: %s\nArgs: %s", prefix, c.FunctionCall.Name, c.FunctionCall.Arguments),
	}
}

func interruptsOf(v any) []Interrupt {
	switch it := v.(type) {
	case []Interrupt:
		return it
	case Interrupt:
		return []Interrupt{it}
	}
	return nil
}
