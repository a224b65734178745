package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pitabwire/jiramcp/internal/workflow"
	"github.com/pitabwire/jiramcp/model"
)

func noActiveWorkflow(workflowID string) *mcp.CallToolResult {
	return mcp.NewToolResultError(model.NewNoActiveInstanceError(workflowID).Message)
}

// workflowError renders an engine failure. Envelope messages are shown
// without their code.
func workflowError(err error) *mcp.CallToolResult {
	msg := err.Error()
	if env, ok := model.AsEnvelope(err); ok {
		msg = env.Message
	}
	return mcp.NewToolResultError("Workflow error: " + msg)
}

func (s *Server) handleGetWorkflowStep(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID := req.GetString("workflowId", "")
	step, ok := s.engine.CurrentStep(workflowID)
	if !ok {
		return noActiveWorkflow(workflowID), nil
	}
	return textResult(render("current_step", step))
}

func (s *Server) handleRespondToWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.engine.Respond(ctx, req.GetString("workflowId", ""), req.GetString("response", ""))
	if err != nil {
		return workflowError(err), nil
	}

	switch {
	case res.Completed:
		return mcp.NewToolResultText("**Workflow Completed Successfully!**\n\n" + completionMessage(res.Result)), nil
	case res.NextStep != nil:
		return textResult(render("next_step", *res.NextStep))
	default:
		return mcp.NewToolResultText("Workflow step processed successfully."), nil
	}
}

func (s *Server) handleGetActiveWorkflows(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active := s.engine.ListActive()
	if len(active) == 0 {
		return mcp.NewToolResultText("No active workflows found."), nil
	}
	body, err := renderEntries("active_workflow", "\n\n---\n\n", active)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText("**Active Workflows:**\n\n" + body), nil
}

func (s *Server) handleCancelWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID := req.GetString("workflowId", "")
	if !s.engine.Cancel(ctx, workflowID) {
		return noActiveWorkflow(workflowID), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Workflow %s has been cancelled successfully.", workflowID)), nil
}

// handleStartWorkflow starts a workflow by id. When issueKey is given the
// issue is fetched and seeded into the workflow data, as get_issue does.
func (s *Server) handleStartWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID := req.GetString("workflowId", "")
	def, ok := s.engine.Definition(workflowID)
	if !ok {
		return workflowError(model.NewDefinitionNotFoundError(workflowID)), nil
	}

	data := model.Data{}
	if issueKey := strings.TrimSpace(req.GetString("issueKey", "")); issueKey != "" {
		issue, err := s.jira.GetIssue(ctx, issueKey)
		if err != nil {
			return jiraError(err), nil
		}
		rec, err := model.NewRecord(issue)
		if err != nil {
			return nil, err
		}
		data[workflow.IssueKey] = rec
	}

	if _, err := s.engine.Start(ctx, workflowID, data); err != nil {
		return workflowError(err), nil
	}
	step, ok := s.engine.CurrentStep(workflowID)
	if !ok {
		return noActiveWorkflow(workflowID), nil
	}

	return textResult(render("workflow_started", struct {
		Name string
		Step model.WorkflowStep
	}{def.Name, step}))
}
