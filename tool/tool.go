package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/llm"
)

// Result is what a tool hands back: Content goes to the model, Artifact
// stays with the caller (for example the retrieved documents).
type Result struct {
	Content  string
	Artifact any
}

// Tool is a named function with a JSON schema for its arguments.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments object.
	Parameters() map[string]any
	// Run executes the tool with the raw JSON arguments from the model.
	Run(ctx context.Context, args string) (Result, error)
}

// Func is a Tool backed by a typed Go function.
type Func[Args any] struct {
	name        string
	description string
	params      map[string]any
	fn          func(ctx context.Context, args Args) (Result, error)
}

// New creates a tool whose result is text only.
func New[Args any](name, description string, fn func(ctx context.Context, args Args) (string, error)) (*Func[Args], error) {
	return NewWithArtifact(name, description, func(ctx context.Context, args Args) (Result, error) {
		s, err := fn(ctx, args)
		return Result{Content: s}, err
	})
}

// NewWithArtifact creates a tool returning content and an artifact.
func NewWithArtifact[Args any](name, description string, fn func(ctx context.Context, args Args) (Result, error)) (*Func[Args], error) {
	params, err := llm.Schema[Args]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	return &Func[Args]{name: name, description: description, params: params, fn: fn}, nil
}

// Must panics if err is non-nil. It is meant for package-level tool
// declarations whose argument types are known to be valid.
func Must[T Tool](t T, err error) T {
	if err != nil {
		panic(err)
	}
	return t
}

func (f *Func[Args]) Name() string               { return f.name }
func (f *Func[Args]) Description() string        { return f.description }
func (f *Func[Args]) Parameters() map[string]any { return f.params }

// Run decodes args, repairing malformed JSON, and calls the function.
func (f *Func[Args]) Run(ctx context.Context, args string) (Result, error) {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	parsed, err := llm.ParseJSON[Args](args)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s: invalid arguments: %w", f.name, err)
	}
	return f.fn(ctx, parsed)
}

// Definitions converts tools to the function definitions passed to a model.
func Definitions(tools []Tool) []llms.Tool {
	defs := make([]llms.Tool, len(tools))
	for i, t := range tools {
		defs[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return defs
}

// ByName indexes tools by name. Later duplicates replace earlier ones.
func ByName(tools []Tool) map[string]Tool {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return m
}
