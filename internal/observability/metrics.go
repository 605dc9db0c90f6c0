package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storyqa/storyqa/internal/llm"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Pipeline metrics
	RunsTotal          *prometheus.CounterVec
	TestCasesGenerated *prometheus.CounterVec
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  prometheus.Histogram
	StepFailures       *prometheus.CounterVec
	PagesCrawled       prometheus.Histogram

	// Temporal workflow metrics
	WorkflowsStarted   *prometheus.CounterVec
	WorkflowsCompleted *prometheus.CounterVec
	WorkflowDuration   *prometheus.HistogramVec
	ActivitiesExecuted *prometheus.CounterVec

	// System metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	GoroutinesActive    prometheus.Gauge
}

// NewMetrics creates a new metrics instance with all Prometheus metrics registered
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "storyqa"
	}

	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		// Pipeline metrics
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		TestCasesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "test_cases_generated_total",
				Help:      "Total number of test cases generated",
			},
			[]string{"category", "mapped"},
		),
		ExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "test_executions_total",
				Help:      "Total number of test case executions by result",
			},
			[]string{"status"},
		),
		ExecutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "test_execution_duration_seconds",
				Help:      "Per-case execution duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		StepFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_failures_total",
				Help:      "Total number of failed steps by failure kind",
			},
			[]string{"kind"},
		),
		PagesCrawled: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pages_crawled",
				Help:      "Number of pages reached per crawl",
				Buckets:   []float64{1, 2, 5, 10, 25, 50},
			},
		),

		// Temporal workflow metrics
		WorkflowsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_started_total",
				Help:      "Total number of workflows started",
			},
			[]string{"workflow_type"},
		),
		WorkflowsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_completed_total",
				Help:      "Total number of workflows completed",
			},
			[]string{"workflow_type", "status"},
		),
		WorkflowDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_duration_seconds",
				Help:      "Workflow execution duration in seconds",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"workflow_type"},
		),
		ActivitiesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activities_executed_total",
				Help:      "Total number of activities executed",
			},
			[]string{"activity_type", "status"},
		),

		// System metrics
		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_active",
				Help:      "Number of active database connections",
			},
		),
		DBConnectionsIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
		GoroutinesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines_active",
				Help:      "Number of active goroutines",
			},
		),
	}

	return m
}

// RegisterLLMCollector exports the Claude client's usage counters.
// Call once at startup; registering twice panics.
func RegisterLLMCollector(namespace string, get func() llm.Metrics) {
	if namespace == "" {
		namespace = "storyqa"
	}

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Total number of Claude API requests",
	}, func() float64 { return float64(get().TotalRequests) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_input_tokens_total",
		Help:      "Total number of input tokens sent to the Claude API",
	}, func() float64 { return float64(get().TotalTokensIn) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_output_tokens_total",
		Help:      "Total number of output tokens received from the Claude API",
	}, func() float64 { return float64(get().TotalTokensOut) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_cost_usd_total",
		Help:      "Total estimated Claude API cost in USD",
	}, func() float64 { return get().TotalCost })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_cache_hits_total",
		Help:      "Total number of LLM response cache hits",
	}, func() float64 { return float64(get().CacheHits) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_cache_misses_total",
		Help:      "Total number of LLM response cache misses",
	}, func() float64 { return float64(get().CacheMisses) })
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records a run reaching a terminal status
func (m *Metrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordTestCase records one generated test case
func (m *Metrics) RecordTestCase(category string, mapped bool) {
	m.TestCasesGenerated.WithLabelValues(category, strconv.FormatBool(mapped)).Inc()
}

// RecordExecution records one executed test case
func (m *Metrics) RecordExecution(status string, durationSeconds float64) {
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	m.ExecutionDuration.Observe(durationSeconds)
}

// RecordStepFailure records a failed step by classified kind
func (m *Metrics) RecordStepFailure(kind string) {
	m.StepFailures.WithLabelValues(kind).Inc()
}

// RecordCrawl records the size of a completed crawl
func (m *Metrics) RecordCrawl(pages int) {
	m.PagesCrawled.Observe(float64(pages))
}

// RecordWorkflowStart records workflow start
func (m *Metrics) RecordWorkflowStart(workflowType string) {
	m.WorkflowsStarted.WithLabelValues(workflowType).Inc()
}

// RecordWorkflowComplete records workflow completion
func (m *Metrics) RecordWorkflowComplete(workflowType, status string, duration time.Duration) {
	m.WorkflowsCompleted.WithLabelValues(workflowType, status).Inc()
	m.WorkflowDuration.WithLabelValues(workflowType).Observe(duration.Seconds())
}

// RecordActivityExecution records activity execution
func (m *Metrics) RecordActivityExecution(activityType, status string) {
	m.ActivitiesExecuted.WithLabelValues(activityType, status).Inc()
}

// SetSystemStats updates the system gauges. Called from a sampler loop.
func (m *Metrics) SetSystemStats(dbActive, dbIdle, goroutines int) {
	m.DBConnectionsActive.Set(float64(dbActive))
	m.DBConnectionsIdle.Set(float64(dbIdle))
	m.GoroutinesActive.Set(float64(goroutines))
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// The route pattern keeps label cardinality bounded; it is only
		// populated after routing, so it is read post-serve.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		duration := time.Since(start)
		m.RecordHTTPRequest(r.Method, path, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Global metrics instance
var globalMetrics *Metrics

// InitMetrics initializes the global metrics instance
func InitMetrics(namespace string) *Metrics {
	globalMetrics = NewMetrics(namespace)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics("storyqa")
	}
	return globalMetrics
}
