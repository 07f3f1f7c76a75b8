// Package llm builds chat models and embedders from configuration and adds
// structured output on top of langchaingo tool calling.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/agentkit-go/ragagents/config"
)

// ErrUnknownProvider is returned for a provider name no factory handles.
var ErrUnknownProvider = errors.New("llm: unknown provider")

// NewChatModel creates the chat model named in cfg.
func NewChatModel(ctx context.Context, cfg config.ModelConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "googleai":
		opts := []googleai.Option{googleai.WithDefaultModel(cfg.Name)}
		if cfg.APIKey != "" {
			opts = append(opts, googleai.WithAPIKey(cfg.APIKey))
		}
		m, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: googleai: %w", err)
		}
		return &temperatureModel{Model: m, temperature: cfg.Temperature}, nil
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Name)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: openai: %w", err)
		}
		return &temperatureModel{Model: m, temperature: cfg.Temperature}, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Name)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: ollama: %w", err)
		}
		return &temperatureModel{Model: m, temperature: cfg.Temperature}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

// temperatureModel prepends the configured temperature to every call so
// per-call options still win.
type temperatureModel struct {
	llms.Model
	temperature float64
}

func (m *temperatureModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := append([]llms.CallOption{llms.WithTemperature(m.temperature)}, options...)
	return m.Model.GenerateContent(ctx, messages, opts...)
}

// FirstChoice returns the first choice of resp or an error when there is none.
func FirstChoice(resp *llms.ContentResponse) (*llms.ContentChoice, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errors.New("llm: empty response")
	}
	return resp.Choices[0], nil
}
