package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger
	// MCP serves the streamable HTTP endpoint.
	MCP          http.Handler
	Authenticate func(http.Handler) http.Handler
	Metrics      *observability.Metrics
	// Gatherer backs the metrics endpoint. Nil uses the default registry.
	Gatherer  prometheus.Gatherer
	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline. Health,
// readiness, and metrics endpoints bypass authentication.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if cfg.Observability.Metrics.Enabled {
		metricsHandler := observability.Handler()
		if deps.Gatherer != nil {
			metricsHandler = observability.HandlerFor(deps.Gatherer)
		}
		r.Method(http.MethodGet, cfg.Observability.Metrics.Path, metricsHandler)
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(deps.Metrics.MetricsMiddleware)
		r.Use(auth)
		r.Use(BuildRequestContext)
		r.Use(RequestLogging(logger))

		mcp := deps.MCP
		if mcp == nil {
			mcp = http.NotFoundHandler()
		}
		r.Handle(cfg.Server.EndpointPath, mcp)
	})

	return r
}
