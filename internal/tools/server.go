// Package tools exposes the issue tracker and the workflow engine as MCP
// tools. Each tool resolves its arguments, calls the Jira client or the
// engine and renders a plain-text result.
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/openapi"
	"github.com/pitabwire/jiramcp/internal/observability"
	"github.com/pitabwire/jiramcp/internal/workflow"
	"github.com/pitabwire/jiramcp/model"
)

// Server identity reported during MCP initialization.
const (
	ServerName    = "jira-mcp-server"
	ServerVersion = "1.0.0"
)

// IssueRepository is the subset of the Jira client the tools call.
type IssueRepository interface {
	GetProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, projectKey string) (model.Project, error)
	SearchIssues(ctx context.Context, jql string, maxResults, startAt int) (model.SearchResult, error)
	GetIssue(ctx context.Context, issueKey string) (model.Issue, error)
	GetProjectIssues(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error)
	GetMyIssues(ctx context.Context, maxResults int) ([]model.Issue, error)
	GetOpenIssues(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error)
	GetBugs(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error)
	GetTasks(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error)
	GetStories(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error)
	CreateIssue(ctx context.Context, projectKey, summary, description, issueType string) (model.Issue, error)
	UpdateIssue(ctx context.Context, issueKey string, fields map[string]any) error
	TransitionIssue(ctx context.Context, issueKey, transitionID string) error
	AddComment(ctx context.Context, issueKey, body string) (model.Comment, error)
	GetTransitions(ctx context.Context, issueKey string) ([]model.Transition, error)
	GetIssueTypes(ctx context.Context, projectKey string) ([]model.IssueType, error)
	GetProjectComponents(ctx context.Context, projectKey string) ([]model.Component, error)
}

// Server owns the MCP server and the tool handlers registered on it.
type Server struct {
	mcp      *server.MCPServer
	jira     IssueRepository
	engine   *workflow.Engine
	schemas  *openapi.Index
	tools    []server.ServerTool
	logger   *zap.Logger
	metrics  *observability.Metrics
	operator string

	callTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics enables Prometheus tool metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOperator sets the subject recorded for calls that carry no
// authenticated identity, such as stdio sessions.
func WithOperator(subject string) Option {
	return func(s *Server) { s.operator = subject }
}

// WithCallTimeout bounds how long a single tool call may run. Zero disables
// the limit.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Server) { s.callTimeout = d }
}

// NewServer builds the MCP server and registers every tool.
func NewServer(jira IssueRepository, engine *workflow.Engine, opts ...Option) (*Server, error) {
	s := &Server{
		jira:     jira,
		engine:   engine,
		schemas:  openapi.NewIndex(),
		logger:   zap.NewNop(),
		operator: "local",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tools = s.definitions()
	toolDefs := make([]mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		toolDefs = append(toolDefs, t.Tool)
	}
	if err := s.schemas.Load(toolDefs); err != nil {
		return nil, fmt.Errorf("tools: indexing schemas: %w", err)
	}

	s.mcp = server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithToolHandlerMiddleware(s.recoveryMiddleware),
		server.WithToolHandlerMiddleware(s.requestContextMiddleware),
		server.WithToolHandlerMiddleware(s.tracingMiddleware),
		server.WithToolHandlerMiddleware(s.observeMiddleware),
		server.WithToolHandlerMiddleware(s.validationMiddleware),
		server.WithToolHandlerMiddleware(s.timeoutMiddleware),
	)
	s.mcp.AddTools(s.tools...)

	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for _, t := range s.tools {
		names = append(names, t.Tool.Name)
	}
	return names
}

// ServeStdio serves MCP over the given reader and writer until ctx is
// cancelled or the input is closed. workers bounds concurrent tool calls.
// Diagnostics go to the logger, never to stdout.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer, workers int) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))
	server.WithWorkerPoolSize(workers)(stdio)

	s.logger.Info("Jira MCP server running on stdio")
	if err := stdio.Listen(ctx, stdin, stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// HTTPHandler returns the streamable HTTP handler for the MCP endpoint. The
// request context, including any authenticated RequestContext, is carried
// into tool calls.
func (s *Server) HTTPHandler(endpointPath string, stateless bool) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(stateless),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
				return model.WithRequestContext(ctx, rctx)
			}
			return ctx
		}),
	)
}
