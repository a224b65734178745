package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the server. All
// recording helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Tool metrics
	ToolCallsTotal         *prometheus.CounterVec
	ToolCallDuration       *prometheus.HistogramVec
	ToolValidationFailures *prometheus.CounterVec

	// Workflow metrics
	WorkflowStartsTotal      *prometheus.CounterVec
	WorkflowAdvancesTotal    *prometheus.CounterVec
	WorkflowCompletionsTotal *prometheus.CounterVec
	WorkflowActiveInstances  *prometheus.GaugeVec
	WorkflowActionDuration   *prometheus.HistogramVec

	// Jira metrics
	JiraRequestsTotal       *prometheus.CounterVec
	JiraRequestDuration     *prometheus.HistogramVec
	JiraCircuitBreakerState prometheus.Gauge
	JiraRetriesTotal        prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// System metrics
	DefinitionReloadTotal *prometheus.CounterVec
	DefinitionsLoaded     prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jiramcp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jiramcp_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jiramcp_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Tools
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_tool_calls_total",
			Help: "Total number of MCP tool calls.",
		}, []string{"tool", "status"}),
		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jiramcp_tool_call_duration_seconds",
			Help:    "MCP tool call duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"tool"}),
		ToolValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_tool_validation_failures_total",
			Help: "Total number of tool calls rejected by argument validation.",
		}, []string{"tool"}),

		// Workflows
		WorkflowStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_workflow_starts_total",
			Help: "Total number of workflow starts.",
		}, []string{"workflow_id"}),
		WorkflowAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_workflow_advances_total",
			Help: "Total number of workflow advances.",
		}, []string{"workflow_id", "step_id", "event"}),
		WorkflowCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_workflow_completions_total",
			Help: "Total number of workflow completions.",
		}, []string{"workflow_id", "final_status"}),
		WorkflowActiveInstances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jiramcp_workflow_active_instances",
			Help: "Number of active workflow instances.",
		}, []string{"workflow_id"}),
		WorkflowActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jiramcp_workflow_action_duration_seconds",
			Help:    "Workflow action step duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"workflow_id", "step_id"}),

		// Jira
		JiraRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_jira_requests_total",
			Help: "Total number of Jira REST requests.",
		}, []string{"operation", "status"}),
		JiraRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jiramcp_jira_request_duration_seconds",
			Help:    "Jira REST request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"operation"}),
		JiraCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jiramcp_jira_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		JiraRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jiramcp_jira_retries_total",
			Help: "Total number of Jira request retries.",
		}),

		// Cache
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_cache_hits_total",
			Help: "Total response cache hits.",
		}, []string{"kind"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_cache_misses_total",
			Help: "Total response cache misses.",
		}, []string{"kind"}),

		// System
		DefinitionReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jiramcp_definition_reload_total",
			Help: "Total workflow definition reloads.",
		}, []string{"status"}),
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jiramcp_definitions_loaded",
			Help: "Number of loaded workflow definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Tools
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.ToolValidationFailures,
		// Workflows
		m.WorkflowStartsTotal,
		m.WorkflowAdvancesTotal,
		m.WorkflowCompletionsTotal,
		m.WorkflowActiveInstances,
		m.WorkflowActionDuration,
		// Jira
		m.JiraRequestsTotal,
		m.JiraRequestDuration,
		m.JiraCircuitBreakerState,
		m.JiraRetriesTotal,
		// Cache
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		// System
		m.DefinitionReloadTotal,
		m.DefinitionsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordToolCall records an MCP tool call. Status is "success" or "error".
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordToolValidationFailure records a tool call rejected before dispatch.
func (m *Metrics) RecordToolValidationFailure(tool string) {
	if m == nil {
		return
	}
	m.ToolValidationFailures.WithLabelValues(tool).Inc()
}

// RecordWorkflowStart records a workflow start. restarted is true when an
// existing instance of the same definition was replaced, in which case the
// active gauge is left unchanged.
func (m *Metrics) RecordWorkflowStart(workflowID string, restarted bool) {
	if m == nil {
		return
	}
	m.WorkflowStartsTotal.WithLabelValues(workflowID).Inc()
	if !restarted {
		m.WorkflowActiveInstances.WithLabelValues(workflowID).Inc()
	}
}

// RecordWorkflowAdvance records a workflow advance.
func (m *Metrics) RecordWorkflowAdvance(workflowID, stepID, event string) {
	if m == nil {
		return
	}
	m.WorkflowAdvancesTotal.WithLabelValues(workflowID, stepID, event).Inc()
}

// RecordWorkflowCompletion records a workflow leaving the active set.
// finalStatus is "completed" or "cancelled".
func (m *Metrics) RecordWorkflowCompletion(workflowID, finalStatus string) {
	if m == nil {
		return
	}
	m.WorkflowCompletionsTotal.WithLabelValues(workflowID, finalStatus).Inc()
	m.WorkflowActiveInstances.WithLabelValues(workflowID).Dec()
}

// RecordWorkflowActionDuration records the duration of an action step.
func (m *Metrics) RecordWorkflowActionDuration(workflowID, stepID string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WorkflowActionDuration.WithLabelValues(workflowID, stepID).Observe(duration.Seconds())
}

// RecordJiraRequest records a Jira REST request. A status of 0 means the
// request never received a response.
func (m *Metrics) RecordJiraRequest(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.JiraRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.JiraRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetJiraCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetJiraCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.JiraCircuitBreakerState.Set(state)
}

// RecordJiraRetry records a Jira request retry.
func (m *Metrics) RecordJiraRetry() {
	if m == nil {
		return
	}
	m.JiraRetriesTotal.Inc()
}

// RecordCacheHit records a response cache hit.
func (m *Metrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a response cache miss.
func (m *Metrics) RecordCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	if m == nil {
		return
	}
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	if m == nil {
		return
	}
	m.DefinitionsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns the Prometheus HTTP handler for the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush forwards to the wrapped writer so streamed MCP responses are not
// buffered.
func (w *metricsResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
