package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/config"
	"github.com/agentkit-go/ragagents/llm/llmtest"
)

type gradeDocuments struct {
	BinaryScore string `json:"binary_score" jsonschema:"Relevance score: 'yes' if relevant, or 'no' if not relevant"`
}

func TestSchema(t *testing.T) {
	params, err := Schema[gradeDocuments]()
	require.NoError(t, err)
	assert.Equal(t, "object", params["type"])
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "binary_score")
	assert.NotContains(t, params, "$schema")
}

func TestStructured_ToolCall(t *testing.T) {
	model := &llmtest.MockLLM{Responses: []llms.ContentResponse{
		*llmtest.ToolCalls(llmtest.ToolCall("c1", "GradeDocuments", `{"binary_score":"yes"}`)),
	}}

	got, err := Structured[gradeDocuments](context.Background(), model,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "grade")},
		"GradeDocuments", "Grade documents")
	require.NoError(t, err)
	assert.Equal(t, "yes", got.BinaryScore)

	calls := model.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Options.Tools, 1)
	assert.Equal(t, "GradeDocuments", calls[0].Options.Tools[0].Function.Name)
	assert.Equal(t, llms.ToolChoice{Type: "function", Function: &llms.FunctionReference{Name: "GradeDocuments"}}, calls[0].Options.ToolChoice)
}

func TestStructured_TextFallback(t *testing.T) {
	model := &llmtest.MockLLM{Responses: []llms.ContentResponse{
		*llmtest.Text("```json\n{\"binary_score\": \"no\",}\n```"),
	}}
	got, err := Structured[gradeDocuments](context.Background(), model, nil, "GradeDocuments", "")
	require.NoError(t, err)
	assert.Equal(t, "no", got.BinaryScore)
}

func TestStructured_Empty(t *testing.T) {
	model := &llmtest.MockLLM{Responses: []llms.ContentResponse{*llmtest.Text("  ")}}
	_, err := Structured[gradeDocuments](context.Background(), model, nil, "GradeDocuments", "")
	assert.ErrorIs(t, err, ErrNoStructuredOutput)
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: `{"binary_score":"yes"}`, want: "yes"},
		{name: "fenced", in: "```\n{\"binary_score\":\"no\"}\n```", want: "no"},
		{name: "trailing comma", in: `{"binary_score":"yes",}`, want: "yes"},
		{name: "not json", in: `[1, 2`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON[gradeDocuments](tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.BinaryScore)
		})
	}
}

func TestTemperatureModel(t *testing.T) {
	inner := &llmtest.MockLLM{}
	m := &temperatureModel{Model: inner, temperature: 0.3}

	_, err := m.GenerateContent(context.Background(), nil)
	require.NoError(t, err)
	_, err = m.GenerateContent(context.Background(), nil, llms.WithTemperature(0.9))
	require.NoError(t, err)

	calls := inner.Calls()
	require.Len(t, calls, 2)
	assert.InDelta(t, 0.3, calls[0].Options.Temperature, 1e-9)
	assert.InDelta(t, 0.9, calls[1].Options.Temperature, 1e-9)
}

func TestNewChatModel_UnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.ModelConfig{Provider: "anthropic", Name: "x"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = NewEmbedder(context.Background(), config.EmbeddingConfig{Provider: "cohere", Model: "x"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewChatModel_OpenAI(t *testing.T) {
	m, err := NewChatModel(context.Background(), config.ModelConfig{Provider: "openai", Name: "gpt-4.1", APIKey: "test"})
	require.NoError(t, err)
	assert.IsType(t, &temperatureModel{}, m)
}

func TestOpenAIEmbedder(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			// reversed order to check the index sort
			j := len(req.Input) - 1 - i
			data[i] = map[string]any{"object": "embedding", "index": j, "embedding": []float32{float32(j), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/", "", "sentence-transformers/all-mpnet-base-v2")
	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i), 1}, v)
	}
	assert.Equal(t, "sentence-transformers/all-mpnet-base-v2", gotModel)

	q, err := e.EmbedQuery(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, q, 2)
}
