// Package message converts langchaingo chat messages to a JSON-stable form
// for checkpoints and renders them for terminals.
package message

import (
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Role values mirror the chat roles a recipe can produce.
const (
	RoleHuman  = "human"
	RoleAI     = "ai"
	RoleSystem = "system"
	RoleTool   = "tool"
)

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is the serialisable form of llms.MessageContent.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Human builds a user message.
func Human(text string) llms.MessageContent {
	return llms.TextParts(llms.ChatMessageTypeHuman, text)
}

// System builds a system message.
func System(text string) llms.MessageContent {
	return llms.TextParts(llms.ChatMessageTypeSystem, text)
}

// AI builds an assistant message with optional tool calls.
func AI(text string, calls ...llms.ToolCall) llms.MessageContent {
	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if text != "" {
		msg.Parts = append(msg.Parts, llms.TextPart(text))
	}
	for _, tc := range calls {
		msg.Parts = append(msg.Parts, tc)
	}
	return msg
}

// Tool builds a tool response message for the given call.
func Tool(callID, name, content string) llms.MessageContent {
	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{ToolCallID: callID, Name: name, Content: content},
		},
	}
}

// Text concatenates the text parts of msg. Tool responses contribute their content.
func Text(msg llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			sb.WriteString(p.Text)
		case llms.ToolCallResponse:
			sb.WriteString(p.Content)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool calls carried by msg.
func ToolCalls(msg llms.MessageContent) []llms.ToolCall {
	var calls []llms.ToolCall
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Last returns the final message of msgs and false when msgs is empty.
func Last(msgs []llms.MessageContent) (llms.MessageContent, bool) {
	if len(msgs) == 0 {
		return llms.MessageContent{}, false
	}
	return msgs[len(msgs)-1], true
}

// FirstHuman returns the text of the first human message, the original question.
func FirstHuman(msgs []llms.MessageContent) string {
	for _, m := range msgs {
		if m.Role == llms.ChatMessageTypeHuman {
			return Text(m)
		}
	}
	return ""
}

// FromLLM converts a langchaingo message.
func FromLLM(msg llms.MessageContent) Message {
	out := Message{Role: roleName(msg.Role)}
	var text strings.Builder
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			text.WriteString(p.Text)
		case llms.ToolCall:
			tc := ToolCall{ID: p.ID}
			if p.FunctionCall != nil {
				tc.Name = p.FunctionCall.Name
				tc.Arguments = p.FunctionCall.Arguments
			}
			out.ToolCalls = append(out.ToolCalls, tc)
		case llms.ToolCallResponse:
			out.ToolCallID = p.ToolCallID
			out.Name = p.Name
			text.WriteString(p.Content)
		}
	}
	out.Content = text.String()
	return out
}

// ToLLM converts back to a langchaingo message.
func (m Message) ToLLM() llms.MessageContent {
	role := chatRole(m.Role)
	if role == llms.ChatMessageTypeTool {
		return Tool(m.ToolCallID, m.Name, m.Content)
	}
	msg := llms.MessageContent{Role: role}
	if m.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextPart(m.Content))
	}
	for _, tc := range m.ToolCalls {
		msg.Parts = append(msg.Parts, llms.ToolCall{
			ID:           tc.ID,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return msg
}

// Encode converts a slice of langchaingo messages.
func Encode(msgs []llms.MessageContent) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = FromLLM(m)
	}
	return out
}

// Decode converts a slice of serialised messages back.
func Decode(msgs []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, len(msgs))
	for i, m := range msgs {
		out[i] = m.ToLLM()
	}
	return out
}

func roleName(r llms.ChatMessageType) string {
	switch r {
	case llms.ChatMessageTypeHuman:
		return RoleHuman
	case llms.ChatMessageTypeAI:
		return RoleAI
	case llms.ChatMessageTypeSystem:
		return RoleSystem
	case llms.ChatMessageTypeTool:
		return RoleTool
	}
	return string(r)
}

func chatRole(s string) llms.ChatMessageType {
	switch s {
	case RoleHuman, "user":
		return llms.ChatMessageTypeHuman
	case RoleAI, "assistant":
		return llms.ChatMessageTypeAI
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleTool:
		return llms.ChatMessageTypeTool
	}
	return llms.ChatMessageType(s)
}
