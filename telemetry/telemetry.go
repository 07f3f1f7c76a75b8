// Package telemetry exports Prometheus metrics for agent runs and retrieval.
//
// A Recorder plugs into agents through agent.WithObserver and into vector
// stores through Instrument. Metrics are registered on the registry given to
// New, so tests and servers can keep them apart from the global registry.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentkit-go/ragagents/agent"
)

const namespace = "ragagents"

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Recorder holds the metric vectors.
type Recorder struct {
	registry *prometheus.Registry

	ModelCalls       *prometheus.CounterVec
	ModelLatency     *prometheus.HistogramVec
	ToolCalls        *prometheus.CounterVec
	ToolLatency      *prometheus.HistogramVec
	Interrupts       *prometheus.CounterVec
	Retrievals       *prometheus.CounterVec
	RetrievalLatency *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
}

var _ agent.Observer = (*Recorder)(nil)

// New registers the metrics on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		ModelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "model_calls_total",
			Help:      "Chat model calls by agent and status.",
		}, []string{"agent", "status"}),
		ModelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "model_call_duration_seconds",
			Help:      "Chat model call latency by agent.",
			Buckets:   latencyBuckets,
		}, []string{"agent"}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool executions by agent, tool and status.",
		}, []string{"agent", "tool", "status"}),
		ToolLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool execution latency by tool.",
			Buckets:   latencyBuckets,
		}, []string{"tool"}),
		Interrupts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "interrupts_total",
			Help:      "Pending human reviews raised by agent.",
		}, []string{"agent"}),
		Retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Vector store searches by operation and status.",
		}, []string{"op", "status"}),
		RetrievalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "Vector store search latency by operation.",
			Buckets:   latencyBuckets,
		}, []string{"op"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ModelCall(_ context.Context, agentName string, elapsed time.Duration, err error) {
	r.ModelCalls.WithLabelValues(agentName, status(err)).Inc()
	r.ModelLatency.WithLabelValues(agentName).Observe(elapsed.Seconds())
}

func (r *Recorder) ToolCall(_ context.Context, agentName, tool string, elapsed time.Duration, err error) {
	r.ToolCalls.WithLabelValues(agentName, tool, status(err)).Inc()
	r.ToolLatency.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (r *Recorder) Interrupted(_ context.Context, agentName string, pending int) {
	r.Interrupts.WithLabelValues(agentName).Add(float64(pending))
}

func (r *Recorder) retrieval(op string, elapsed time.Duration, err error) {
	r.Retrievals.WithLabelValues(op, status(err)).Inc()
	r.RetrievalLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
