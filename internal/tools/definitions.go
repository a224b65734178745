package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolGetProjects          = "get_projects"
	ToolGetProject           = "get_project"
	ToolSearchIssues         = "search_issues"
	ToolGetIssue             = "get_issue"
	ToolGetProjectIssues     = "get_project_issues"
	ToolGetMyIssues          = "get_my_issues"
	ToolGetOpenIssues        = "get_open_issues"
	ToolGetBugs              = "get_bugs"
	ToolGetTasks             = "get_tasks"
	ToolGetStories           = "get_stories"
	ToolCreateIssue          = "create_issue"
	ToolUpdateIssue          = "update_issue"
	ToolTransitionIssue      = "transition_issue"
	ToolGetTransitions       = "get_transitions"
	ToolAddComment           = "add_comment"
	ToolGetIssueTypes        = "get_issue_types"
	ToolGetProjectComponents = "get_project_components"
	ToolGetWorkflowStep      = "get_workflow_step"
	ToolRespondToWorkflow    = "respond_to_workflow"
	ToolGetActiveWorkflows   = "get_active_workflows"
	ToolCancelWorkflow       = "cancel_workflow"
	ToolStartWorkflow        = "start_workflow"
)

const (
	maxResultsDescription = "Maximum number of results to return (default: 50)"
	optionalProjectKey    = "The key of the project (optional)"
	issueKeyExample       = `The key of the issue (e.g., "PROJECT-123")`
)

func withMaxResults() mcp.ToolOption {
	return mcp.WithNumber("maxResults", mcp.Description(maxResultsDescription))
}

// definitions returns every tool with its handler in listing order.
func (s *Server) definitions() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolGetProjects,
				mcp.WithDescription("Get all projects from Jira"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetProjects,
		},
		{
			Tool: mcp.NewTool(ToolGetProject,
				mcp.WithDescription("Get a specific project by key"),
				mcp.WithString("projectKey", mcp.Required(), mcp.Description("The key of the project to get")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetProject,
		},
		{
			Tool: mcp.NewTool(ToolSearchIssues,
				mcp.WithDescription("Search for issues using JQL (Jira Query Language)"),
				mcp.WithString("jql", mcp.Required(),
					mcp.Description(`JQL query string (e.g., "project = PROJECTKEY AND status = 'In Progress'")`)),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleSearchIssues,
		},
		{
			Tool: mcp.NewTool(ToolGetIssue,
				mcp.WithDescription("Get a specific issue by key"),
				mcp.WithString("issueKey", mcp.Required(),
					mcp.Description(`The key of the issue to get (e.g., "PROJECT-123")`)),
			),
			Handler: s.handleGetIssue,
		},
		{
			Tool: mcp.NewTool(ToolGetProjectIssues,
				mcp.WithDescription("Get all issues for a specific project"),
				mcp.WithString("projectKey", mcp.Required(), mcp.Description("The key of the project")),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetProjectIssues,
		},
		{
			Tool: mcp.NewTool(ToolGetMyIssues,
				mcp.WithDescription("Get issues assigned to the current user"),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetMyIssues,
		},
		{
			Tool: mcp.NewTool(ToolGetOpenIssues,
				mcp.WithDescription("Get open/unresolved issues"),
				mcp.WithString("projectKey", mcp.Description(optionalProjectKey)),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetOpenIssues,
		},
		{
			Tool: mcp.NewTool(ToolGetBugs,
				mcp.WithDescription("Get bug issues"),
				mcp.WithString("projectKey", mcp.Description(optionalProjectKey)),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.typedIssuesHandler("bugs", s.jira.GetBugs),
		},
		{
			Tool: mcp.NewTool(ToolGetTasks,
				mcp.WithDescription("Get task issues"),
				mcp.WithString("projectKey", mcp.Description(optionalProjectKey)),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.typedIssuesHandler("tasks", s.jira.GetTasks),
		},
		{
			Tool: mcp.NewTool(ToolGetStories,
				mcp.WithDescription("Get story issues"),
				mcp.WithString("projectKey", mcp.Description(optionalProjectKey)),
				withMaxResults(),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.typedIssuesHandler("stories", s.jira.GetStories),
		},
		{
			Tool: mcp.NewTool(ToolCreateIssue,
				mcp.WithDescription("Create a new issue"),
				mcp.WithString("projectKey", mcp.Required(), mcp.Description("The key of the project")),
				mcp.WithString("summary", mcp.Required(), mcp.Description("Summary/title of the issue")),
				mcp.WithString("description", mcp.Required(), mcp.Description("Description of the issue")),
				mcp.WithString("issueType", mcp.Description("Type of issue (Task, Bug, Story, etc.)")),
				mcp.WithDestructiveHintAnnotation(false),
			),
			Handler: s.handleCreateIssue,
		},
		{
			Tool: mcp.NewTool(ToolUpdateIssue,
				mcp.WithDescription("Update the summary or description of an issue"),
				mcp.WithString("issueKey", mcp.Required(), mcp.Description(issueKeyExample)),
				mcp.WithString("summary", mcp.Description("New summary/title of the issue")),
				mcp.WithString("description", mcp.Description("New description of the issue")),
				mcp.WithIdempotentHintAnnotation(true),
			),
			Handler: s.handleUpdateIssue,
		},
		{
			Tool: mcp.NewTool(ToolGetTransitions,
				mcp.WithDescription("Get the workflow transitions available for an issue"),
				mcp.WithString("issueKey", mcp.Required(), mcp.Description(issueKeyExample)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetTransitions,
		},
		{
			Tool: mcp.NewTool(ToolTransitionIssue,
				mcp.WithDescription("Move an issue through a workflow transition"),
				mcp.WithString("issueKey", mcp.Required(), mcp.Description(issueKeyExample)),
				mcp.WithString("transitionId", mcp.Required(),
					mcp.Description("The ID of the transition, as listed by get_transitions")),
			),
			Handler: s.handleTransitionIssue,
		},
		{
			Tool: mcp.NewTool(ToolAddComment,
				mcp.WithDescription("Add a comment to an issue"),
				mcp.WithString("issueKey", mcp.Required(), mcp.Description(issueKeyExample)),
				mcp.WithString("comment", mcp.Required(), mcp.Description("The comment text to add")),
			),
			Handler: s.handleAddComment,
		},
		{
			Tool: mcp.NewTool(ToolGetIssueTypes,
				mcp.WithDescription("Get available issue types for a project"),
				mcp.WithString("projectKey", mcp.Required(), mcp.Description("The key of the project")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetIssueTypes,
		},
		{
			Tool: mcp.NewTool(ToolGetProjectComponents,
				mcp.WithDescription("Get components for a project"),
				mcp.WithString("projectKey", mcp.Required(), mcp.Description("The key of the project")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetProjectComponents,
		},
		{
			Tool: mcp.NewTool(ToolGetWorkflowStep,
				mcp.WithDescription("Get the current step of an active workflow"),
				mcp.WithString("workflowId", mcp.Required(), mcp.Description("The ID of the workflow to check")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetWorkflowStep,
		},
		{
			Tool: mcp.NewTool(ToolRespondToWorkflow,
				mcp.WithDescription("Respond to the current step of an active workflow"),
				mcp.WithString("workflowId", mcp.Required(), mcp.Description("The ID of the workflow to respond to")),
				mcp.WithString("response", mcp.Required(), mcp.Description("The response to the current workflow step")),
			),
			Handler: s.handleRespondToWorkflow,
		},
		{
			Tool: mcp.NewTool(ToolGetActiveWorkflows,
				mcp.WithDescription("Get all currently active workflows"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: s.handleGetActiveWorkflows,
		},
		{
			Tool: mcp.NewTool(ToolCancelWorkflow,
				mcp.WithDescription("Cancel an active workflow"),
				mcp.WithString("workflowId", mcp.Required(), mcp.Description("The ID of the workflow to cancel")),
			),
			Handler: s.handleCancelWorkflow,
		},
		{
			Tool: mcp.NewTool(ToolStartWorkflow,
				mcp.WithDescription("Start a workflow, optionally seeded with an issue"),
				mcp.WithString("workflowId", mcp.Required(), mcp.Description("The ID of the workflow to start")),
				mcp.WithString("issueKey", mcp.Description("The key of an issue to attach to the workflow (optional)")),
			),
			Handler: s.handleStartWorkflow,
		},
	}
}
