package message

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestFromLLMToLLM_ToolCallRoundTrip(t *testing.T) {
	call := llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "get_weather_for_location", Arguments: `{"city":"SF"}`},
	}
	msgs := []llms.MessageContent{
		System("You are an expert weather forecaster"),
		Human("what is the weather outside?"),
		AI("", call),
		Tool("call_1", "get_weather_for_location", "It's always sunny in SF!"),
		AI("Sunny with a chance of puns."),
	}

	data, err := json.Marshal(Encode(msgs))
	require.NoError(t, err)

	var wire []Message
	require.NoError(t, json.Unmarshal(data, &wire))
	back := Decode(wire)

	require.Len(t, back, len(msgs))
	assert.Equal(t, msgs[0], back[0])
	assert.Equal(t, msgs[1], back[1])
	assert.Equal(t, []llms.ToolCall{call}, ToolCalls(back[2]))
	assert.Equal(t, msgs[3], back[3])
	assert.Equal(t, "Sunny with a chance of puns.", Text(back[4]))
}

func TestFromLLM_Fields(t *testing.T) {
	m := FromLLM(Tool("abc", "retrieve_context", "Source: {}"))
	assert.Equal(t, RoleTool, m.Role)
	assert.Equal(t, "abc", m.ToolCallID)
	assert.Equal(t, "retrieve_context", m.Name)
	assert.Equal(t, "Source: {}", m.Content)
}

func TestToLLM_AcceptsOpenAIRoleNames(t *testing.T) {
	assert.Equal(t, llms.ChatMessageTypeHuman, Message{Role: "user"}.ToLLM().Role)
	assert.Equal(t, llms.ChatMessageTypeAI, Message{Role: "assistant"}.ToLLM().Role)
}

func TestLastAndFirstHuman(t *testing.T) {
	_, ok := Last(nil)
	assert.False(t, ok)

	msgs := []llms.MessageContent{System("sys"), Human("first"), AI("reply"), Human("second")}
	last, ok := Last(msgs)
	require.True(t, ok)
	assert.Equal(t, "second", Text(last))
	assert.Equal(t, "first", FirstHuman(msgs))
}

func TestTitle(t *testing.T) {
	title := Title(RoleHuman)
	assert.Len(t, title, ruleWidth)
	assert.Contains(t, title, " Human Message ")
	assert.Contains(t, Title(RoleAI), " Ai Message ")
}

func TestPretty(t *testing.T) {
	var buf bytes.Buffer
	err := PrettyAll(&buf, []llms.MessageContent{
		Human("hi"),
		AI("", llms.ToolCall{ID: "c1", FunctionCall: &llms.FunctionCall{Name: "send_email", Arguments: `{"to":["a@b"]}`}}),
		Tool("c1", "send_email", "sent"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Human Message")
	assert.Contains(t, out, "hi")
	assert.Contains(t, out, "Tool Calls:")
	assert.Contains(t, out, "send_email")
	assert.Contains(t, out, `Args: {"to":["a@b"]}`)
	assert.Contains(t, out, "Tool Message")
	assert.Contains(t, out, "Name: send_email")
}
