package agent

import (
	"context"
	"encoding/json"

	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/llm"
	"github.com/agentkit-go/ragagents/log"
)

// PromptFunc builds the messages sent to the model from the current state.
type PromptFunc func(ctx context.Context, s State) ([]llms.MessageContent, error)

// Option configures an Agent.
type Option func(*options)

type options struct {
	name           string
	systemPrompt   string
	prompt         PromptFunc
	responseFormat *responseFormat
	saver          checkpoint.Saver
	hitl           *HITLConfig
	maxIterations  int
	observer       Observer
	logger         log.Logger
}

type responseFormat struct {
	name     string
	generate func(ctx context.Context, model llms.Model, msgs []llms.MessageContent) (json.RawMessage, error)
}

// WithName names the agent in logs, metrics and interrupts.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSystemPrompt prepends a system message to every model call.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithPrompt replaces the default prompt. The function receives the full
// state and returns every message to send, system prompt included.
func WithPrompt(fn PromptFunc) Option {
	return func(o *options) { o.prompt = fn }
}

// WithResponseFormat adds a final structured_response node that asks the
// model for a T once it stops calling tools.
func WithResponseFormat[T any](name, description string) Option {
	return func(o *options) {
		o.responseFormat = &responseFormat{
			name: name,
			generate: func(ctx context.Context, model llms.Model, msgs []llms.MessageContent) (json.RawMessage, error) {
				v, err := llm.Structured[T](ctx, model, msgs, name, description)
				if err != nil {
					return nil, err
				}
				return json.Marshal(v)
			},
		}
	}
}

// WithCheckpointer persists thread state after every run.
func WithCheckpointer(s checkpoint.Saver) Option {
	return func(o *options) { o.saver = s }
}

// WithHumanInTheLoop pauses before the configured tools run.
func WithHumanInTheLoop(cfg HITLConfig) Option {
	return func(o *options) { o.hitl = &cfg }
}

// WithMaxIterations bounds the number of model calls per run. Zero means
// the default of 25.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}
