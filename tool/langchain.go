package tool

import (
	"context"

	"github.com/tmc/langchaingo/tools"
)

type langChainTool struct {
	t Tool
}

// AsLangChain adapts t to langchaingo's tools.Tool. The input string is
// passed through as the JSON arguments and the artifact is dropped.
func AsLangChain(t Tool) tools.Tool {
	return langChainTool{t: t}
}

func (l langChainTool) Name() string        { return l.t.Name() }
func (l langChainTool) Description() string { return l.t.Description() }

func (l langChainTool) Call(ctx context.Context, input string) (string, error) {
	res, err := l.t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
