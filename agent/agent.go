// Package agent builds tool-calling agents on the langgraphgo state graph
// runtime.
//
// An agent graph has an "agent" node that calls the chat model with the tool
// definitions, a "tools" node that executes the requested calls and feeds the
// results back, and an optional "structured_response" node that turns the
// final answer into a typed value:
//
//	START -> agent -> tools -> agent -> ... -> [structured_response] -> END
//
// With a checkpointer, runs are grouped into threads and every Invoke
// continues the conversation stored for its thread. Tools can be guarded by a
// human in the loop: the run stops with an *InterruptError and continues
// through Resume once the reviewer has decided.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/llm"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/message"
	"github.com/agentkit-go/ragagents/tool"
)

// Node names.
const (
	nodeAgent      = "agent"
	nodeTools      = "tools"
	nodeStructured = "structured_response"
)

const defaultMaxIterations = 25

// ErrMaxIterations is returned when a run makes more model calls than allowed.
var ErrMaxIterations = errors.New("agent reached the iteration limit")

// Agent is a compiled tool-calling graph.
type Agent struct {
	name           string
	model          llms.Model
	tools          []tool.Tool
	byName         map[string]tool.Tool
	systemPrompt   string
	prompt         PromptFunc
	responseFormat *responseFormat
	saver          checkpoint.Saver
	hitl           *HITLConfig
	maxIterations  int
	observer       Observer
	logger         log.Logger

	graph    *graph.StateGraph[State]
	runnable *graph.StateRunnable[State]
}

// New compiles an agent for model and tools.
func New(model llms.Model, tools []tool.Tool, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, errors.New("agent: model is required")
	}
	o := options{name: "agent", maxIterations: defaultMaxIterations}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxIterations <= 0 {
		o.maxIterations = defaultMaxIterations
	}
	a := &Agent{
		name:           o.name,
		model:          model,
		tools:          tools,
		byName:         tool.ByName(tools),
		systemPrompt:   o.systemPrompt,
		prompt:         o.prompt,
		responseFormat: o.responseFormat,
		saver:          o.saver,
		hitl:           o.hitl,
		maxIterations:  o.maxIterations,
		observer:       o.observer,
		logger:         log.OrDefault(o.logger),
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	if a.prompt == nil {
		a.prompt = a.defaultPrompt
	}
	if a.hitl != nil {
		for name := range a.hitl.InterruptOn {
			if _, ok := a.byName[name]; !ok {
				return nil, fmt.Errorf("agent %s: interrupt configured for unknown tool %q", a.name, name)
			}
		}
	}

	g := graph.NewStateGraph[State]()
	g.SetSchema(graph.NewStructSchema(State{}, mergeState))
	g.AddNode(nodeAgent, "Call the model with the conversation and tool definitions", a.callModel)
	g.AddNode(nodeTools, "Execute the tool calls of the last model message", a.runTools)
	g.SetEntryPoint(nodeAgent)
	g.AddConditionalEdge(nodeAgent, a.route)
	g.AddEdge(nodeTools, nodeAgent)
	if a.responseFormat != nil {
		g.AddNode(nodeStructured, "Produce the structured response", a.structuredResponse)
		g.AddEdge(nodeStructured, graph.END)
	}

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("agent %s: compile graph: %w", a.name, err)
	}
	a.graph = g
	a.runnable = runnable
	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Mermaid renders the agent graph as a Mermaid flowchart.
func (a *Agent) Mermaid() string {
	return graph.NewExporter(a.graph).DrawMermaid()
}

func (a *Agent) defaultPrompt(_ context.Context, s State) ([]llms.MessageContent, error) {
	if a.systemPrompt == "" {
		return s.Messages, nil
	}
	msgs := make([]llms.MessageContent, 0, len(s.Messages)+1)
	msgs = append(msgs, message.System(a.systemPrompt))
	return append(msgs, s.Messages...), nil
}

func (a *Agent) callModel(ctx context.Context, s State) (State, error) {
	if len(s.Messages) == 0 {
		return State{}, fmt.Errorf("agent %s: no messages in state", a.name)
	}
	if s.Iterations >= a.maxIterations {
		return State{}, fmt.Errorf("agent %s: %w (%d)", a.name, ErrMaxIterations, a.maxIterations)
	}
	msgs, err := a.prompt(ctx, s)
	if err != nil {
		return State{}, fmt.Errorf("agent %s: build prompt: %w", a.name, err)
	}

	var opts []llms.CallOption
	if len(a.tools) > 0 {
		opts = append(opts, llms.WithTools(tool.Definitions(a.tools)))
	}
	start := time.Now()
	resp, err := a.model.GenerateContent(ctx, msgs, opts...)
	a.observer.ModelCall(ctx, a.name, time.Since(start), err)
	if err != nil {
		return State{}, fmt.Errorf("agent %s: model call: %w", a.name, err)
	}
	choice, err := llm.FirstChoice(resp)
	if err != nil {
		return State{}, fmt.Errorf("agent %s: %w", a.name, err)
	}
	calls := EnsureToolCallIDs(choice.ToolCalls)
	a.logger.Debug("agent %s: model returned %d tool call(s)", a.name, len(calls))
	return State{
		Messages:   []llms.MessageContent{message.AI(choice.Content, calls...)},
		Iterations: 1,
	}, nil
}

func (a *Agent) route(_ context.Context, s State) string {
	if HasToolCalls(s.Messages) {
		return nodeTools
	}
	if a.responseFormat != nil {
		return nodeStructured
	}
	return graph.END
}

func (a *Agent) runTools(ctx context.Context, s State) (State, error) {
	last, ok := s.Last()
	if !ok || last.Role != llms.ChatMessageTypeAI {
		return State{}, fmt.Errorf("agent %s: last message is not an AI message", a.name)
	}
	plan, err := a.review(ctx, message.ToolCalls(last))
	if err != nil {
		return State{}, err
	}

	results := make([]llms.MessageContent, len(plan))
	var (
		mu      sync.Mutex
		bubbled []Interrupt
		g       errgroup.Group
	)
	for i, p := range plan {
		name := p.call.FunctionCall.Name
		if p.rejection != "" {
			results[i] = message.Tool(p.call.ID, name, p.rejection)
			continue
		}
		g.Go(func() error {
			content, err := a.execute(withToolCall(ctx, p.call.ID), name, p.args)
			var ie *InterruptError
			if errors.As(err, &ie) {
				mu.Lock()
				bubbled = append(bubbled, ie.Interrupts...)
				mu.Unlock()
				return nil
			}
			if err != nil {
				content = fmt.Sprintf("Error: %v", err)
			}
			results[i] = message.Tool(p.call.ID, name, content)
			return nil
		})
	}
	_ = g.Wait()

	if len(bubbled) > 0 {
		sort.Slice(bubbled, func(i, j int) bool { return bubbled[i].ID < bubbled[j].ID })
		return State{}, &graph.NodeInterrupt{Node: nodeTools, Value: bubbled}
	}
	return State{Messages: results}, nil
}

func (a *Agent) execute(ctx context.Context, name, args string) (string, error) {
	t, ok := a.byName[name]
	if !ok {
		return "", fmt.Errorf("tool %q not found", name)
	}
	start := time.Now()
	res, err := t.Run(ctx, args)
	a.observer.ToolCall(ctx, a.name, name, time.Since(start), err)
	if err != nil {
		a.logger.Debug("agent %s: tool %s failed: %v", a.name, name, err)
		return "", err
	}
	return res.Content, nil
}

func (a *Agent) structuredResponse(ctx context.Context, s State) (State, error) {
	msgs, err := a.prompt(ctx, s)
	if err != nil {
		return State{}, fmt.Errorf("agent %s: build prompt: %w", a.name, err)
	}
	start := time.Now()
	raw, err := a.responseFormat.generate(ctx, a.model, msgs)
	a.observer.ModelCall(ctx, a.name, time.Since(start), err)
	if err != nil {
		return State{}, fmt.Errorf("agent %s: structured response %s: %w", a.name, a.responseFormat.name, err)
	}
	return State{StructuredResponse: raw}, nil
}
