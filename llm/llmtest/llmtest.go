// Package llmtest provides scripted chat models and deterministic embedders
// for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// Call records one GenerateContent invocation.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// HandlerFunc computes a response from the request.
type HandlerFunc func(ctx context.Context, messages []llms.MessageContent, opts llms.CallOptions) (*llms.ContentResponse, error)

// MockLLM replays Responses in order, or delegates to Handler when set.
// Once Responses are exhausted it answers "No more responses".
type MockLLM struct {
	Responses []llms.ContentResponse
	Handler   HandlerFunc

	mu    sync.Mutex
	calls []Call
	next  int
}

// GenerateContent implements llms.Model.
func (m *MockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.mu.Lock()
	m.calls = append(m.calls, Call{Messages: append([]llms.MessageContent(nil), messages...), Options: opts})
	if m.Handler != nil {
		m.mu.Unlock()
		return m.Handler(ctx, messages, opts)
	}
	defer m.mu.Unlock()
	if m.next >= len(m.Responses) {
		return Text("No more responses"), nil
	}
	resp := m.Responses[m.next]
	m.next++
	return &resp, nil
}

// Call implements llms.Model.
func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns a copy of the recorded invocations.
func (m *MockLLM) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Text is a response with a single text choice.
func Text(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

// ToolCalls is a response whose only choice requests calls.
func ToolCalls(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

// ToolCall builds a function call.
func ToolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

// Embedder hashes words into a fixed number of buckets and normalises the
// result, so texts sharing words score higher under cosine similarity.
type Embedder struct {
	Dim int

	mu    sync.Mutex
	calls int
}

// NewEmbedder returns an Embedder with 64 dimensions.
func NewEmbedder() *Embedder { return &Embedder{Dim: 64} }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// Calls reports how many texts were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) vector(text string) []float32 {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
