package integration

import (
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/jiramcp/internal/tools"
	"github.com/pitabwire/jiramcp/model"
)

func TestJiraTools_RequestsCarryBasicAuth(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpGetProjects).RespondWith(http.StatusOK, []model.Project{ProjectFixture("PROJ", "Project One")})

	got := h.Text(c, tools.ToolGetProjects, nil)
	assert.True(t, strings.HasPrefix(got, "Found 1 projects:"), got)
	assert.Contains(t, got, "Project One")

	req := h.Jira.LastRequest(OpGetProjects)
	require.NotNil(t, req)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(Operator+":api-token"))
	assert.Equal(t, want, req.Headers.Get("Authorization"))
	assert.Equal(t, "application/json", req.Headers.Get("Accept"))
}

func TestJiraTools_Search(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpSearch).RespondWith(http.StatusOK, model.SearchResult{
		Total:  12,
		Issues: []model.Issue{IssueFixture("PROJ-1", "Login fails", "Bug", "To Do"), IssueFixture("PROJ-2", "Add SSO", "Story", "In Progress")},
	})

	got := h.Text(c, tools.ToolSearchIssues, map[string]any{"jql": "project = PROJ", "maxResults": 2})
	assert.True(t, strings.HasPrefix(got, "Found 12 issues (showing 2):"), got)
	assert.Contains(t, got, "PROJ-1")
	assert.Contains(t, got, "PROJ-2")

	body := h.Jira.LastRequest(OpSearch).Body
	assert.Equal(t, "project = PROJ", body["jql"])
	assert.Equal(t, float64(2), body["maxResults"])
	assert.Contains(t, body["fields"], "summary")
}

func TestJiraTools_IssueListsBuildJQL(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
		jql  string
	}{
		{tools.ToolGetProjectIssues, map[string]any{"projectKey": "PROJ"}, "project = PROJ ORDER BY created DESC"},
		{tools.ToolGetMyIssues, nil, "assignee = currentUser() ORDER BY updated DESC"},
		{tools.ToolGetOpenIssues, map[string]any{"projectKey": "PROJ"}, `project = PROJ AND status != "Done" AND status != "Closed" ORDER BY priority DESC, updated DESC`},
		{tools.ToolGetBugs, nil, `issuetype = "Bug" ORDER BY priority DESC, created DESC`},
		{tools.ToolGetTasks, map[string]any{"projectKey": "OPS"}, `project = OPS AND issuetype = "Task" ORDER BY priority DESC, created DESC`},
		{tools.ToolGetStories, nil, `issuetype = "Story" ORDER BY priority DESC, created DESC`},
	}

	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpSearch).RespondWith(http.StatusOK, SearchFixture(IssueFixture("PROJ-1", "Login fails", "Bug", "To Do")))

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			h.Text(c, tt.tool, tt.args)
			body := h.Jira.LastRequest(OpSearch).Body
			assert.Equal(t, tt.jql, body["jql"])
			assert.Equal(t, float64(50), body["maxResults"])
		})
	}
}

func TestJiraTools_CreateIssue(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpCreateIssue).RespondWith(http.StatusCreated, map[string]any{"id": "10009", "key": "PROJ-9"})
	h.Jira.On(OpGetIssue).RespondWith(http.StatusOK, IssueFixture("PROJ-9", "Tidy docs", "Bug", "To Do"))

	got := h.Text(c, tools.ToolCreateIssue, map[string]any{
		"projectKey": "PROJ", "summary": "Tidy docs", "description": "Rewrite the README", "issueType": "Bug",
	})
	assert.True(t, strings.HasPrefix(got, "Issue created successfully:"), got)
	assert.Contains(t, got, "**PROJ-9** - Tidy docs")

	fields, ok := h.Jira.LastRequest(OpCreateIssue).Body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"key": "PROJ"}, fields["project"])
	assert.Equal(t, "Tidy docs", fields["summary"])
	assert.Equal(t, "Rewrite the README", fields["description"])
	assert.Equal(t, map[string]any{"name": "Bug"}, fields["issuetype"])
	assert.Equal(t, "PROJ-9", h.Jira.LastRequest(OpGetIssue).PathKey)
}

func TestJiraTools_CreateIssueFallsBackWhenFetchFails(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpCreateIssue).RespondWith(http.StatusCreated, map[string]any{"id": "10009", "key": "PROJ-9"})
	h.Jira.On(OpGetIssue).RespondWithError(http.StatusForbidden)

	got := h.Text(c, tools.ToolCreateIssue, map[string]any{
		"projectKey": "PROJ", "summary": "Tidy docs", "description": "Rewrite the README",
	})
	assert.Contains(t, got, "**PROJ-9** - Tidy docs")
	assert.Contains(t, got, "Type: Task")
}

func TestJiraTools_UpdateTransitionComment(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpUpdateIssue).RespondWith(http.StatusNoContent, nil)
	h.Jira.On(OpGetTransitions).RespondWith(http.StatusOK, map[string]any{
		"transitions": []model.Transition{{ID: "31", Name: "Done", To: model.NamedRef{Name: "Done"}}},
	})
	h.Jira.On(OpTransition).RespondWith(http.StatusNoContent, nil)
	h.Jira.On(OpAddComment).RespondWith(http.StatusCreated, model.Comment{
		ID: "500", Body: "Fixed in 2.1", Author: &model.User{DisplayName: "Ops"}, Created: "2024-03-01T09:00:00.000+0000",
	})

	got := h.Text(c, tools.ToolUpdateIssue, map[string]any{"issueKey": "PROJ-1", "summary": "New title", "description": "New body"})
	assert.Equal(t, "Issue PROJ-1 updated successfully.", got)
	assert.Equal(t, map[string]any{"fields": map[string]any{"summary": "New title", "description": "New body"}},
		h.Jira.LastRequest(OpUpdateIssue).Body)

	got = h.Text(c, tools.ToolGetTransitions, map[string]any{"issueKey": "PROJ-1"})
	assert.Contains(t, got, "**Done** (31)")

	got = h.Text(c, tools.ToolTransitionIssue, map[string]any{"issueKey": "PROJ-1", "transitionId": "31"})
	assert.Equal(t, "Issue PROJ-1 transitioned successfully.", got)
	assert.Equal(t, map[string]any{"transition": map[string]any{"id": "31"}}, h.Jira.LastRequest(OpTransition).Body)

	got = h.Text(c, tools.ToolAddComment, map[string]any{"issueKey": "PROJ-1", "comment": "Fixed in 2.1"})
	assert.Contains(t, got, "Fixed in 2.1")
	assert.Equal(t, map[string]any{"body": "Fixed in 2.1"}, h.Jira.LastRequest(OpAddComment).Body)
}

func TestJiraTools_ProjectMetadata(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpGetProject).RespondWith(http.StatusOK, ProjectFixture("PROJ", "Project One"))
	h.Jira.On(OpGetComponents).RespondWith(http.StatusOK, []model.Component{
		{ID: "7", Name: "Backend", Lead: &model.User{DisplayName: "Ada Lovelace"}},
	})

	got := h.Text(c, tools.ToolGetIssueTypes, map[string]any{"projectKey": "PROJ"})
	assert.Contains(t, got, "Bug")
	assert.Contains(t, got, "Task")

	got = h.Text(c, tools.ToolGetProjectComponents, map[string]any{"projectKey": "PROJ"})
	assert.Contains(t, got, "Backend")
	assert.Contains(t, got, "Ada Lovelace")
	assert.Equal(t, "PROJ", h.Jira.LastRequest(OpGetComponents).PathKey)
}

func TestJiraTools_JiraErrorsReachCaller(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))
	h.Jira.On(OpGetIssue).RespondWithError(http.StatusUnauthorized)

	got := h.ErrorText(c, tools.ToolGetIssue, map[string]any{"issueKey": "PROJ-1"})
	assert.Equal(t, "Error calling Jira API: Failed to fetch issue PROJ-1: "+
		"Authentication failed. Please check your Jira email and API token.", got)
	assert.Empty(t, h.Engine.ListActive())
}

func TestJiraTools_InvalidArgumentsNeverReachJira(t *testing.T) {
	h := NewTestHarness(t)
	c := h.Connect(h.GenerateToken(UserClaims()))

	got := h.ErrorText(c, tools.ToolGetIssue, map[string]any{})
	assert.True(t, strings.HasPrefix(got, "Invalid arguments for get_issue:"), got)
	h.Jira.AssertCalled(t, OpGetIssue, 0)

	resp := h.Do(http.MethodGet, "/metrics", "", "", nil)
	metrics := h.ReadBody(resp)
	assert.Contains(t, metrics, `jiramcp_tool_calls_total{status="invalid",tool="get_issue"} 1`)
}
