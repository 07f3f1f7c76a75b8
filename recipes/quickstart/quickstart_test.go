package quickstart

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/llm/llmtest"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/message"
	"github.com/agentkit-go/ragagents/recipes"
)

func TestRun(t *testing.T) {
	model := &llmtest.MockLLM{Responses: []llms.ContentResponse{
		*llmtest.ToolCalls(llmtest.ToolCall("c1", "get_user_location", "")),
		*llmtest.ToolCalls(llmtest.ToolCall("c2", "get_weather_for_location", `{"city":"Florida"}`)),
		*llmtest.Text("Florida is having a sun-derful day!"),
		*llmtest.ToolCalls(llmtest.ToolCall("r1", "ResponseFormat",
			`{"punny_response":"Florida is having a sun-derful day!","weather_conditions":"It's always sunny in Florida!"}`)),
		*llmtest.Text("You're thund-erfully welcome!"),
		*llmtest.ToolCalls(llmtest.ToolCall("r2", "ResponseFormat", `{"punny_response":"You're thund-erfully welcome!"}`)),
	}}
	saver := checkpoint.NewMemory()
	var out bytes.Buffer
	env := &recipes.Env{Model: model, Saver: saver, Logger: &log.NoOpLogger{}, Out: &out}

	responses, err := Run(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "It's always sunny in Florida!", responses[0].WeatherConditions)
	assert.Equal(t, "You're thund-erfully welcome!", responses[1].PunnyResponse)
	assert.Empty(t, responses[1].WeatherConditions)
	assert.Contains(t, out.String(), "punny_response")

	calls := model.Calls()
	require.Len(t, calls, 6)
	assert.Equal(t, SystemPrompt, message.Text(calls[0].Messages[0]))
	// The location tool saw user 1.
	assert.Equal(t, "Florida", message.Text(calls[1].Messages[3]))
	// The second turn continues thread 1.
	assert.Equal(t, Turns[0], message.Text(calls[4].Messages[1]))

	cp, err := saver.Latest(context.Background(), ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Version)
}

func TestTools(t *testing.T) {
	tools, err := Tools()
	require.NoError(t, err)
	require.Len(t, tools, 2)

	res, err := tools[1].Run(context.Background(), `{"city":"yogyakarta"}`)
	require.NoError(t, err)
	assert.Equal(t, "It's always sunny in yogyakarta!", res.Content)

	res, err = tools[0].Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "SF", res.Content)
}
