// Package integration runs the Jira MCP server end to end: the HTTP
// transport with bearer authentication, the MCP tool layer, the workflow
// engine and the Jira client, talking to a mock Jira site.
package integration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/cache"
	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/definition"
	"github.com/pitabwire/jiramcp/internal/invoker"
	"github.com/pitabwire/jiramcp/internal/jira"
	"github.com/pitabwire/jiramcp/internal/observability"
	"github.com/pitabwire/jiramcp/internal/tools"
	"github.com/pitabwire/jiramcp/internal/transport"
	"github.com/pitabwire/jiramcp/internal/workflow"
	"github.com/pitabwire/jiramcp/model"
)

// Operator is the Jira account the server acts as.
const Operator = "ops@acme.example.com"

// TestHarness is a fully wired server with a mock Jira behind it.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	Jira     *MockJira
	Client   *jira.Client
	Engine   *workflow.Engine
	Events   *workflow.MemoryEventSink
	Registry *definition.Registry
	Metrics  *prometheus.Registry
	Redis    *miniredis.Miniredis

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*config.Config)

// WithCircuitBreaker sets the Jira circuit breaker settings.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *config.Config) { c.Jira.CircuitBreaker = cb }
}

// WithRetry sets the Jira retry settings.
func WithRetry(r config.RetryConfig) HarnessOption {
	return func(c *config.Config) { c.Jira.Retry = r }
}

// WithCacheDriver selects the response cache. The redis driver runs against
// an in-process miniredis.
func WithCacheDriver(driver string) HarnessOption {
	return func(c *config.Config) { c.Cache.Driver = driver }
}

// WithDefinitions loads workflow definitions from the given directories in
// addition to the built-ins.
func WithDefinitions(dirs ...string) HarnessOption {
	return func(c *config.Config) { c.Workflow.Directories = dirs }
}

// WithToolTimeout sets the per-call tool timeout.
func WithToolTimeout(d time.Duration) HarnessOption {
	return func(c *config.Config) { c.Server.ToolTimeout = d }
}

// WithJiraTimeout sets the Jira HTTP client timeout.
func WithJiraTimeout(d time.Duration) HarnessOption {
	return func(c *config.Config) { c.Jira.Timeout = d }
}

// NewTestHarness creates and starts a server instance. Everything is torn
// down when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	h := &TestHarness{
		t:      t,
		Jira:   newMockJira(t),
		issuer: newTokenIssuer(t),
	}

	cfg := config.Defaults()
	cfg.Jira.Domain = "acme.atlassian.net"
	cfg.Jira.Email = Operator
	cfg.Jira.BaseURL = h.Jira.APIURL()
	cfg.Jira.Timeout = 5 * time.Second
	cfg.Jira.Retry = config.RetryConfig{MaxAttempts: 1}
	cfg.Server.Transport = config.TransportHTTP
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Auth = config.AuthConfig{
		Enabled:      true,
		Issuer:       h.issuer.Issuer(),
		Audience:     h.issuer.Audience(),
		JWKSURL:      h.issuer.JWKSURL(),
		JWKSCacheTTL: time.Hour,
		Algorithms:   []string{"RS256"},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	h.cfg = cfg

	logger := zap.NewNop()
	clock := clockwork.NewRealClock()
	h.Metrics = prometheus.NewRegistry()
	metrics := observability.InitMetrics(h.Metrics)

	var store cache.Cache
	switch cfg.Cache.Driver {
	case cache.DriverRedis:
		h.Redis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		store = cache.NewRedis(rdb, cfg.Cache.Prefix)
	case cache.DriverMemory:
		store = cache.NewMemory(clock)
	default:
		store = cache.Nop{}
	}

	h.Client = jira.New(cfg.Jira, "api-token",
		jira.WithCache(store, cfg.Cache.TTL),
		jira.WithClock(clock),
		jira.WithLogger(logger),
		jira.WithMetrics(metrics),
	)

	actions := invoker.NewActionRegistry()
	workflow.RegisterBuiltinActions(actions)
	h.Registry = definition.NewRegistry()
	catalog := definition.NewCatalog(h.Registry, definition.NewValidator(actions),
		workflow.Builtins(), cfg.Workflow.Directories, logger)
	require.NoError(t, catalog.Reload(), "load workflow definitions")

	h.Events = workflow.NewMemoryEventSink()
	h.Engine = workflow.NewEngine(h.Registry, workflow.NewMemoryInstanceStore(), actions,
		workflow.WithEventSink(h.Events),
		workflow.WithClock(clock),
		workflow.WithMetrics(metrics),
	)

	srv, err := tools.NewServer(h.Client, h.Engine,
		tools.WithLogger(logger),
		tools.WithMetrics(metrics),
		tools.WithOperator(cfg.Jira.Email),
		tools.WithCallTimeout(cfg.Server.ToolTimeout),
	)
	require.NoError(t, err)

	auth, jwks, err := transport.NewAuthenticator(cfg.Auth, logger)
	require.NoError(t, err)

	mcpHandler := srv.HTTPHandler(cfg.Server.EndpointPath, cfg.Server.Stateless)
	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		MCP:          mcpHandler,
		Authenticate: auth,
		Metrics:      metrics,
		Gatherer:     h.Metrics,
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return h.Registry.Len() > 0 },
			Jira:              h.Client,
			Cache:             store,
			AuditSink:         h.Events,
			Identity:          jwks,
		},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mcpHandler.Shutdown(ctx)
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// EndpointURL returns the MCP endpoint URL.
func (h *TestHarness) EndpointURL() string {
	return h.server.URL + h.cfg.Server.EndpointPath
}

// GenerateToken creates a valid JWT with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// GenerateForeignToken creates a JWT signed by a key the server does not
// know, with the published key id.
func (h *TestHarness) GenerateForeignToken(claims TestClaims) string {
	h.t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(h.t, err)
	return h.issuer.SignWith(key, claims)
}

// Connect opens an initialized MCP session authenticated with token.
func (h *TestHarness) Connect(token string) *client.Client {
	h.t.Helper()

	c, err := h.dial(token)
	require.NoError(h.t, err)
	return c
}

func (h *TestHarness) dial(token string) (*client.Client, error) {
	var opts []mcptransport.StreamableHTTPCOption
	if token != "" {
		opts = append(opts, mcptransport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + token,
		}))
	}
	c, err := client.NewStreamableHttpClient(h.EndpointURL(), opts...)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	h.t.Cleanup(func() { _ = c.Close() })

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "integration-test", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, err
	}
	return c, nil
}

// Call invokes a tool and fails the test on a transport error.
func (h *TestHarness) Call(c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	h.t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(h.t, err, "call %s", name)
	return res
}

// Text invokes a tool and returns its text, failing on a tool error.
func (h *TestHarness) Text(c *client.Client, name string, args map[string]any) string {
	h.t.Helper()
	res := h.Call(c, name, args)
	require.False(h.t, res.IsError, "%s returned error: %s", name, ResultText(res))
	return ResultText(res)
}

// ErrorText invokes a tool and returns its text, failing unless the tool
// reported an error.
func (h *TestHarness) ErrorText(c *client.Client, name string, args map[string]any) string {
	h.t.Helper()
	res := h.Call(c, name, args)
	require.True(h.t, res.IsError, "%s succeeded: %s", name, ResultText(res))
	return ResultText(res)
}

// Do performs a raw HTTP request against the server.
func (h *TestHarness) Do(method, path, body, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	require.NoError(h.t, err, "%s %s", method, path)
	return resp
}

// ReadBody reads and closes the response body.
func (h *TestHarness) ReadBody(resp *http.Response) string {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return string(data)
}

// ResultText returns the text of the first text content item.
func ResultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Default claims ---

// UserClaims returns claims for an ordinary caller.
func UserClaims() TestClaims {
	return TestClaims{SubjectID: "user-42", Email: "dev@acme.example.com"}
}

// --- Jira fixtures ---

// IssueFixture returns a Jira issue body.
func IssueFixture(key, summary, issueType, status string) model.Issue {
	return model.Issue{
		ID:  "1" + strings.TrimPrefix(key, "PROJ-"),
		Key: key,
		Fields: model.IssueFields{
			Summary:     summary,
			Description: "Details for " + key,
			Status:      model.NamedRef{Name: status},
			Priority:    &model.NamedRef{Name: "Medium"},
			Assignee:    &model.User{DisplayName: "Ada Lovelace"},
			Reporter:    &model.User{DisplayName: "Grace Hopper"},
			Created:     "2024-01-15T10:30:00.000+0000",
			Updated:     "2024-02-03T12:00:00.000+0000",
			IssueType:   model.IssueType{Name: issueType},
			Project:     model.ProjectRef{Key: "PROJ", Name: "Project One"},
		},
	}
}

// SearchFixture wraps issues in a search response.
func SearchFixture(issues ...model.Issue) model.SearchResult {
	return model.SearchResult{MaxResults: 50, Total: len(issues), Issues: issues}
}

// ProjectFixture returns a Jira project body.
func ProjectFixture(key, name string) model.Project {
	return model.Project{
		ID:             "100",
		Key:            key,
		Name:           name,
		ProjectTypeKey: "software",
		Lead:           &model.User{DisplayName: "Ada Lovelace"},
		IssueTypes: []model.IssueType{
			{ID: "1", Name: "Bug", Description: "A problem"},
			{ID: "3", Name: "Task", Description: "A task"},
		},
	}
}
