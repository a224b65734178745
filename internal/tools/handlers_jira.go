package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/internal/observability"
	"github.com/pitabwire/jiramcp/internal/workflow"
	"github.com/pitabwire/jiramcp/model"
)

const defaultMaxResults = 50

// maxResults reads the maxResults argument. Missing or non-positive values
// fall back to the default.
func maxResults(req mcp.CallToolRequest) int {
	if n := req.GetInt("maxResults", 0); n > 0 {
		return n
	}
	return defaultMaxResults
}

// jiraError renders a failed Jira call as a tool error.
func jiraError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("Error calling Jira API: " + err.Error())
}

// textResult wraps rendered text. A render failure is returned as a handler
// error.
func textResult(text string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGetProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.jira.GetProjects(ctx)
	if err != nil {
		return jiraError(err), nil
	}
	return textResult(renderList(fmt.Sprintf("Found %d projects:\n\n", len(projects)), "project", projects))
}

func (s *Server) handleGetProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := s.jira.GetProject(ctx, req.GetString("projectKey", ""))
	if err != nil {
		return jiraError(err), nil
	}
	return textResult(render("project_details", project))
}

func (s *Server) handleSearchIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.jira.SearchIssues(ctx, req.GetString("jql", ""), maxResults(req), 0)
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Found %d issues (showing %d):\n\n", res.Total, len(res.Issues))
	return textResult(renderList(header, "issue_search", res.Issues))
}

// handleGetIssue fetches an issue and starts the workflow triggered by this
// tool, if one is registered.
func (s *Server) handleGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := s.jira.GetIssue(ctx, req.GetString("issueKey", ""))
	if err != nil {
		return jiraError(err), nil
	}

	text, err := render("issue_details", issue)
	if err != nil {
		return nil, err
	}

	if def, ok := s.engine.TriggerFor(ToolGetIssue); ok {
		text += s.triggerWorkflow(ctx, def, issue)
	}
	return mcp.NewToolResultText(text), nil
}

// triggerWorkflow starts def seeded with the issue and renders the prompt
// for its first step. Failures are logged and produce no prompt.
func (s *Server) triggerWorkflow(ctx context.Context, def model.WorkflowDefinition, issue model.Issue) string {
	logger := observability.RequestLogger(ctx, s.logger).With(zap.String("workflow_id", def.ID))

	rec, err := model.NewRecord(issue)
	if err != nil {
		logger.Warn("workflow not triggered", zap.Error(err))
		return ""
	}
	if _, err := s.engine.Start(ctx, def.ID, model.Data{workflow.IssueKey: rec}); err != nil {
		logger.Warn("workflow not triggered", zap.Error(err))
		return ""
	}
	step, ok := s.engine.CurrentStep(def.ID)
	if !ok {
		return ""
	}

	text, err := render("workflow_triggered", struct {
		ID   string
		Name string
		Step model.WorkflowStep
	}{def.ID, def.Name, step})
	if err != nil {
		logger.Warn("workflow prompt not rendered", zap.Error(err))
		return ""
	}
	return text
}

func (s *Server) handleGetProjectIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectKey := req.GetString("projectKey", "")
	issues, err := s.jira.GetProjectIssues(ctx, projectKey, maxResults(req))
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Found %d issues for project %s:\n\n", len(issues), projectKey)
	return textResult(renderList(header, "issue_project", issues))
}

func (s *Server) handleGetMyIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues, err := s.jira.GetMyIssues(ctx, maxResults(req))
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Found %d issues assigned to you:\n\n", len(issues))
	return textResult(renderList(header, "issue_mine", issues))
}

func (s *Server) handleGetOpenIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectKey := req.GetString("projectKey", "")
	issues, err := s.jira.GetOpenIssues(ctx, projectKey, maxResults(req))
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Found %d open issues%s:\n\n", len(issues), projectSuffix(projectKey))
	return textResult(renderList(header, "issue_open", issues))
}

type issueLister func(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error)

// typedIssuesHandler serves get_bugs, get_tasks and get_stories. noun is the
// plural used in the header.
func (s *Server) typedIssuesHandler(noun string, list issueLister) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectKey := req.GetString("projectKey", "")
		issues, err := list(ctx, projectKey, maxResults(req))
		if err != nil {
			return jiraError(err), nil
		}
		header := fmt.Sprintf("Found %d %s%s:\n\n", len(issues), noun, projectSuffix(projectKey))
		return textResult(renderList(header, "issue_typed", issues))
	}
}

func (s *Server) handleCreateIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := s.jira.CreateIssue(ctx,
		req.GetString("projectKey", ""),
		req.GetString("summary", ""),
		req.GetString("description", ""),
		req.GetString("issueType", "Task"),
	)
	if err != nil {
		return jiraError(err), nil
	}
	return textResult(render("issue_created", issue))
}

func (s *Server) handleUpdateIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey := req.GetString("issueKey", "")

	fields := make(map[string]any, 2)
	args := req.GetArguments()
	for _, name := range []string{"summary", "description"} {
		if v, ok := args[name].(string); ok {
			fields[name] = v
		}
	}
	if len(fields) == 0 {
		return mcp.NewToolResultError("Nothing to update: provide summary or description"), nil
	}

	if err := s.jira.UpdateIssue(ctx, issueKey, fields); err != nil {
		return jiraError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Issue %s updated successfully.", issueKey)), nil
}

func (s *Server) handleGetTransitions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey := req.GetString("issueKey", "")
	transitions, err := s.jira.GetTransitions(ctx, issueKey)
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Available transitions for issue %s:\n\n", issueKey)
	return textResult(renderList(header, "transition", transitions))
}

func (s *Server) handleTransitionIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey := req.GetString("issueKey", "")
	if err := s.jira.TransitionIssue(ctx, issueKey, req.GetString("transitionId", "")); err != nil {
		return jiraError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Issue %s transitioned successfully.", issueKey)), nil
}

func (s *Server) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey := req.GetString("issueKey", "")
	comment, err := s.jira.AddComment(ctx, issueKey, req.GetString("comment", ""))
	if err != nil {
		return jiraError(err), nil
	}
	return textResult(render("comment", struct {
		IssueKey string
		Comment  model.Comment
	}{issueKey, comment}))
}

func (s *Server) handleGetIssueTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectKey := req.GetString("projectKey", "")
	types, err := s.jira.GetIssueTypes(ctx, projectKey)
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Available issue types for project %s:\n\n", projectKey)
	return textResult(renderList(header, "issue_type", types))
}

func (s *Server) handleGetProjectComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectKey := req.GetString("projectKey", "")
	components, err := s.jira.GetProjectComponents(ctx, projectKey)
	if err != nil {
		return jiraError(err), nil
	}
	header := fmt.Sprintf("Components for project %s:\n\n", projectKey)
	return textResult(renderList(header, "component", components))
}
