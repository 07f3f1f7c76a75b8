package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/llm/llmtest"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/recipes/agenticrag"
	"github.com/agentkit-go/ragagents/telemetry"
	"github.com/agentkit-go/ragagents/vectorstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, model llms.Model) (*Server, *telemetry.Recorder) {
	t.Helper()
	rec := telemetry.New(nil)
	store := rec.Instrument(vectorstore.NewMemory(llmtest.NewEmbedder()))
	_, err := store.AddDocuments(context.Background(), []schema.Document{
		{PageContent: "Reward tampering is a type of reward hacking.", Metadata: map[string]any{"source": "reward-hacking"}},
		{PageContent: "Video diffusion models generate frames."},
	})
	require.NoError(t, err)
	retriever, err := agenticrag.RetrieverTool(store)
	require.NoError(t, err)
	p, err := agenticrag.New(model, retriever, agenticrag.WithLogger(&log.NoOpLogger{}), agenticrag.WithObserver(rec))
	require.NoError(t, err)
	s, err := New(store, p, rec, &log.NoOpLogger{})
	require.NoError(t, err)
	return s, rec
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &llmtest.MockLLM{})
	w := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestSearch(t *testing.T) {
	s, _ := newTestServer(t, &llmtest.MockLLM{})
	w := do(s, http.MethodPost, "/v1/search", `{"query":"reward tampering hacking","k":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results[0].Content, "Reward tampering")
	assert.Equal(t, "reward-hacking", resp.Results[0].Metadata["source"])
	assert.Greater(t, resp.Results[0].Score, 0.0)
}

func TestSearch_DefaultK(t *testing.T) {
	s, _ := newTestServer(t, &llmtest.MockLLM{})
	w := do(s, http.MethodPost, "/v1/search", `{"query":"video"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
	assert.NotNil(t, resp.Results[1].Metadata)
}

func TestSearch_Invalid(t *testing.T) {
	s, _ := newTestServer(t, &llmtest.MockLLM{})
	for name, body := range map[string]string{
		"malformed": `{"query":`,
		"missing":   `{}`,
		"blank":     `{"query":"   "}`,
		"k too big": `{"query":"x","k":500}`,
		"negative":  `{"query":"x","k":-1}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/v1/search", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestAsk(t *testing.T) {
	model := &llmtest.MockLLM{Responses: []llms.ContentResponse{
		*llmtest.ToolCalls(llmtest.ToolCall("c1", "retrieve_blog_posts", `{"query":"reward tampering"}`)),
		*llmtest.ToolCalls(llmtest.ToolCall("g", "GradeDocuments", `{"binary_score":"yes"}`)),
		*llmtest.Text("Reward tampering is one type."),
	}}
	s, _ := newTestServer(t, model)

	w := do(s, http.MethodPost, "/v1/ask", `{"question":"What types of reward hacking exist?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Reward tampering is one type.", resp.Answer)
	assert.Equal(t, []string{"generate_query_or_respond", "retrieve", "grade_documents", "generate_answer"}, resp.Trace)
	assert.Equal(t, "yes", resp.Grade)

	metrics := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	body := metrics.Body.String()
	assert.Contains(t, body, `ragagents_http_requests_total{code="200",route="/v1/ask"} 1`)
	assert.Contains(t, body, `ragagents_agent_model_calls_total{agent="agentic_rag",status="ok"} 3`)
}

func TestAsk_ModelError(t *testing.T) {
	model := &llmtest.MockLLM{Handler: func(context.Context, []llms.MessageContent, llms.CallOptions) (*llms.ContentResponse, error) {
		return nil, assert.AnError
	}}
	s, _ := newTestServer(t, model)
	w := do(s, http.MethodPost, "/v1/ask", `{"question":"anything"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGraph(t *testing.T) {
	s, _ := newTestServer(t, &llmtest.MockLLM{})
	w := do(s, http.MethodGet, "/v1/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grade_documents")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, _ := newTestServer(t, &llmtest.MockLLM{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

func TestSearch_ConfiguredDefaultK(t *testing.T) {
	store := vectorstore.NewMemory(llmtest.NewEmbedder())
	_, err := store.AddDocuments(context.Background(), []schema.Document{{PageContent: "a"}, {PageContent: "b"}})
	require.NoError(t, err)
	retriever, err := agenticrag.RetrieverTool(store)
	require.NoError(t, err)
	p, err := agenticrag.New(&llmtest.MockLLM{}, retriever)
	require.NoError(t, err)
	s, err := New(store, p, nil, &log.NoOpLogger{}, WithDefaultK(1))
	require.NoError(t, err)

	w := do(s, http.MethodPost, "/v1/search", `{"query":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 1)

	// No recorder, no metrics route.
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/metrics", "").Code)
}
