package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/tmc/langchaingo/llms"
)

// ErrNoStructuredOutput is returned when the model produced neither a
// function call nor parseable text.
var ErrNoStructuredOutput = errors.New("llm: no structured output in response")

// Schema returns the JSON schema of T as a plain map, the shape langchaingo
// expects for function parameters.
func Schema[T any]() (map[string]any, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("llm: schema for %T: %w", *new(T), err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	delete(params, "$schema")
	return params, nil
}

// Structured asks model for a T by forcing a single call to a function
// called name whose parameters are T's schema. Text content is used when
// the provider ignores the tool choice.
func Structured[T any](ctx context.Context, model llms.Model, messages []llms.MessageContent, name, description string) (T, error) {
	var zero T
	params, err := Schema[T]()
	if err != nil {
		return zero, err
	}
	fn := llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
	resp, err := model.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{fn}),
		llms.WithToolChoice(llms.ToolChoice{Type: "function", Function: &llms.FunctionReference{Name: name}}),
	)
	if err != nil {
		return zero, fmt.Errorf("llm: structured %s: %w", name, err)
	}
	choice, err := FirstChoice(resp)
	if err != nil {
		return zero, err
	}

	raw := ""
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && (tc.FunctionCall.Name == name || raw == "") {
			raw = tc.FunctionCall.Arguments
		}
	}
	if raw == "" && choice.FuncCall != nil {
		raw = choice.FuncCall.Arguments
	}
	if raw == "" {
		raw = choice.Content
	}
	if strings.TrimSpace(raw) == "" {
		return zero, ErrNoStructuredOutput
	}
	return ParseJSON[T](raw)
}

// ParseJSON decodes content into T, stripping markdown fences and
// repairing malformed JSON when a plain decode fails.
func ParseJSON[T any](content string) (T, error) {
	var out T
	content = stripFences(content)
	err := json.Unmarshal([]byte(content), &out)
	if err == nil {
		return out, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return out, fmt.Errorf("llm: decode %T: %w (repair: %v)", out, err, repairErr)
	}
	var fixed T
	if err := json.Unmarshal([]byte(repaired), &fixed); err != nil {
		return out, fmt.Errorf("llm: decode repaired %T: %w", out, err)
	}
	return fixed, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
