// Package server exposes semantic search and the agentic RAG pipeline over
// HTTP.
//
//	POST /v1/search   similarity search with scores
//	POST /v1/ask      agentic RAG answer and the nodes it went through
//	GET  /v1/graph    the pipeline as a Mermaid flowchart
//	GET  /healthz     liveness
//	GET  /metrics     Prometheus metrics, when a recorder is set
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/recipes/agenticrag"
	"github.com/agentkit-go/ragagents/telemetry"
	"github.com/agentkit-go/ragagents/vectorstore"
)

const requestIDHeader = "X-Request-ID"

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// SearchRequest is the body of POST /v1/search. A zero K uses the server
// default.
type SearchRequest struct {
	Query string `json:"query" validate:"required,notblank,max=4096"`
	K     int    `json:"k,omitempty" validate:"gte=0,lte=50"`
}

// SearchResult is one scored hit.
type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// SearchResponse is the body answered by POST /v1/search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question" validate:"required,notblank,max=4096"`
}

// AskResponse carries the answer and the node trace.
type AskResponse struct {
	Answer   string   `json:"answer"`
	Trace    []string `json:"trace"`
	Rewrites int      `json:"rewrites"`
	Grade    string   `json:"grade,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Server routes requests to the store and the pipeline.
type Server struct {
	store    vectorstore.Store
	pipeline *agenticrag.Pipeline
	metrics  *telemetry.Recorder
	logger   log.Logger
	defaultK int
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultK sets the result count used when a search request has no k.
func WithDefaultK(k int) Option {
	return func(s *Server) { s.defaultK = k }
}

// New builds the router. rec may be nil.
func New(store vectorstore.Store, pipeline *agenticrag.Pipeline, rec *telemetry.Recorder, logger log.Logger, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: store is required")
	}
	if pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	s := &Server{
		store:    store,
		pipeline: pipeline,
		metrics:  rec,
		logger:   log.OrDefault(logger),
		defaultK: vectorstore.DefaultK,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultK <= 0 {
		s.defaultK = vectorstore.DefaultK
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID, s.observe)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if rec != nil {
		r.GET("/metrics", gin.WrapH(rec.Handler()))
	}
	v1 := r.Group("/v1")
	v1.POST("/search", s.search)
	v1.POST("/ask", s.ask)
	v1.GET("/graph", s.graph)
	s.engine = r
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is done, then shuts down with a
// grace period of five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("server: listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	code := c.Writer.Status()
	if s.metrics != nil {
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	}
	s.logger.Debug("server: %s %s %d %s", c.Request.Method, route, code, time.Since(start))
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("server: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: err.Error(), RequestID: c.GetString(requestIDHeader)})
}

func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func (s *Server) search(c *gin.Context) {
	var req SearchRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	k := req.K
	if k == 0 {
		k = s.defaultK
	}
	hits, err := s.store.SimilaritySearchWithScore(c.Request.Context(), req.Query, k)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	resp := SearchResponse{Results: make([]SearchResult, len(hits))}
	for i, h := range hits {
		md := h.Document.Metadata
		if md == nil {
			md = map[string]any{}
		}
		resp.Results[i] = SearchResult{Content: h.Document.PageContent, Metadata: md, Score: h.Score}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ask(c *gin.Context) {
	var req AskRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	var trace []string
	st, err := s.pipeline.Stream(c.Request.Context(), req.Question, func(node string, _ []llms.MessageContent, _ agenticrag.State) {
		trace = append(trace, node)
	})
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, AskResponse{Answer: st.Answer(), Trace: trace, Rewrites: st.Rewrites, Grade: st.Grade})
}

func (s *Server) graph(c *gin.Context) {
	c.String(http.StatusOK, s.pipeline.Mermaid())
}
