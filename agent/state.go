package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/message"
)

// ErrNoStructuredResponse is returned by StructuredResponse when the run
// did not produce one.
var ErrNoStructuredResponse = errors.New("no structured response in state")

// State is the message list an agent graph passes between nodes.
type State struct {
	Messages []llms.MessageContent
	// StructuredResponse holds the JSON produced by the structured_response node.
	StructuredResponse json.RawMessage
	// Iterations counts model calls made since the last human input.
	Iterations int
}

// Input starts or continues a thread.
type Input struct {
	Messages []llms.MessageContent
}

// Ask is an Input holding a single human message.
func Ask(text string) Input {
	return Input{Messages: []llms.MessageContent{message.Human(text)}}
}

type stateWire struct {
	Messages           []message.Message `json:"messages"`
	StructuredResponse json.RawMessage   `json:"structured_response,omitempty"`
	Iterations         int               `json:"iterations,omitempty"`
}

// MarshalJSON encodes the state in the form stored by checkpoints.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateWire{
		Messages:           message.Encode(s.Messages),
		StructuredResponse: s.StructuredResponse,
		Iterations:         s.Iterations,
	})
}

// UnmarshalJSON decodes a checkpointed state.
func (s *State) UnmarshalJSON(data []byte) error {
	var w stateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Messages = message.Decode(w.Messages)
	s.StructuredResponse = w.StructuredResponse
	s.Iterations = w.Iterations
	return nil
}

// Last returns the final message of the state.
func (s State) Last() (llms.MessageContent, bool) {
	return message.Last(s.Messages)
}

// Answer is the text of the final message.
func (s State) Answer() string {
	last, ok := s.Last()
	if !ok {
		return ""
	}
	return message.Text(last)
}

// StructuredResponse decodes the structured response of s into T.
func StructuredResponse[T any](s State) (T, error) {
	var out T
	if len(s.StructuredResponse) == 0 {
		return out, ErrNoStructuredResponse
	}
	if err := json.Unmarshal(s.StructuredResponse, &out); err != nil {
		return out, fmt.Errorf("decode structured response: %w", err)
	}
	return out, nil
}

// EnsureToolCallIDs returns calls with a fresh id on every call the model
// left without one. Interrupt ids and sub-agent threads are derived from
// call ids, so they must be unique within a thread.
func EnsureToolCallIDs(calls []llms.ToolCall) []llms.ToolCall {
	if !slices.ContainsFunc(calls, func(c llms.ToolCall) bool { return c.ID == "" }) {
		return calls
	}
	out := slices.Clone(calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = "call_" + uuid.NewString()
		}
	}
	return out
}

// mergeState appends messages and adds iteration deltas. Node results only
// carry what they produced.
func mergeState(current, update State) (State, error) {
	current.Messages = slices.Concat(current.Messages, update.Messages)
	if len(update.StructuredResponse) > 0 {
		current.StructuredResponse = update.StructuredResponse
	}
	current.Iterations += update.Iterations
	return current, nil
}
