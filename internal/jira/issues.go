package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/pitabwire/jiramcp/model"
)

// searchFields are the issue fields requested by every search.
var searchFields = []string{
	"summary",
	"description",
	"status",
	"priority",
	"assignee",
	"reporter",
	"created",
	"updated",
	"resolution",
	"issuetype",
	"project",
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

// SearchIssues runs a JQL query. A non-positive maxResults uses the
// configured default.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults, startAt int) (model.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	var out model.SearchResult
	err := c.do(ctx, request{
		op:         "search_issues",
		method:     http.MethodPost,
		path:       "/search",
		body:       searchRequest{JQL: jql, StartAt: startAt, MaxResults: maxResults, Fields: searchFields},
		idempotent: true,
	}, &out)
	if err != nil {
		return model.SearchResult{}, fmt.Errorf("Failed to search issues: %w", err)
	}
	return out, nil
}

// GetIssue fetches one issue by key.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (model.Issue, error) {
	var out model.Issue
	key := issueCacheKey(issueKey)
	if c.cacheGet(ctx, "issue", key, &out) {
		return out, nil
	}
	err := c.do(ctx, request{
		op:         "get_issue",
		method:     http.MethodGet,
		path:       "/issue/" + url.PathEscape(issueKey),
		idempotent: true,
	}, &out)
	if err != nil {
		return model.Issue{}, fmt.Errorf("Failed to fetch issue %s: %w", issueKey, err)
	}
	c.cacheSet(ctx, key, out)
	return out, nil
}

// GetProjectIssues returns a project's issues, newest first.
func (c *Client) GetProjectIssues(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return c.searchList(ctx, ProjectIssuesJQL(projectKey), maxResults)
}

// GetMyIssues returns the issues assigned to the authenticated user.
func (c *Client) GetMyIssues(ctx context.Context, maxResults int) ([]model.Issue, error) {
	return c.searchList(ctx, MyIssuesJQL(), maxResults)
}

// GetOpenIssues returns issues that are not Done or Closed. An empty
// projectKey searches every project.
func (c *Client) GetOpenIssues(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return c.searchList(ctx, OpenIssuesJQL(projectKey), maxResults)
}

// GetBugs returns Bug issues.
func (c *Client) GetBugs(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return c.searchList(ctx, IssueTypeJQL(projectKey, "Bug"), maxResults)
}

// GetTasks returns Task issues.
func (c *Client) GetTasks(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return c.searchList(ctx, IssueTypeJQL(projectKey, "Task"), maxResults)
}

// GetStories returns Story issues.
func (c *Client) GetStories(ctx context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return c.searchList(ctx, IssueTypeJQL(projectKey, "Story"), maxResults)
}

func (c *Client) searchList(ctx context.Context, jql string, maxResults int) ([]model.Issue, error) {
	res, err := c.SearchIssues(ctx, jql, maxResults, 0)
	if err != nil {
		return nil, err
	}
	return res.Issues, nil
}

type createIssueRequest struct {
	Fields createIssueFields `json:"fields"`
}

type createIssueFields struct {
	Project     keyRef  `json:"project"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	IssueType   nameRef `json:"issuetype"`
}

type keyRef struct {
	Key string `json:"key"`
}

type nameRef struct {
	Name string `json:"name"`
}

// CreateIssue creates an issue and returns it with its fields. Jira only
// answers a create with the new key, so the issue is fetched afterwards; if
// that fetch fails the fields are filled from the request.
func (c *Client) CreateIssue(ctx context.Context, projectKey, summary, description, issueType string) (model.Issue, error) {
	if issueType == "" {
		issueType = "Task"
	}
	var created model.Issue
	err := c.do(ctx, request{
		op:     "create_issue",
		method: http.MethodPost,
		path:   "/issue",
		body: createIssueRequest{Fields: createIssueFields{
			Project:     keyRef{Key: projectKey},
			Summary:     summary,
			Description: description,
			IssueType:   nameRef{Name: issueType},
		}},
	}, &created)
	if err != nil {
		return model.Issue{}, fmt.Errorf("Failed to create issue: %w", err)
	}

	issue, err := c.GetIssue(ctx, created.Key)
	if err != nil {
		c.logger.Warn("created issue could not be fetched",
			zap.String("issue_key", created.Key),
			zap.Error(err),
		)
		created.Fields.Summary = summary
		created.Fields.Description = description
		created.Fields.IssueType = model.IssueType{Name: issueType}
		created.Fields.Project = model.ProjectRef{Key: projectKey, Name: projectKey}
		return created, nil
	}
	return issue, nil
}

// UpdateIssue sets the given fields on an issue.
func (c *Client) UpdateIssue(ctx context.Context, issueKey string, fields map[string]any) error {
	err := c.do(ctx, request{
		op:         "update_issue",
		method:     http.MethodPut,
		path:       "/issue/" + url.PathEscape(issueKey),
		body:       map[string]any{"fields": fields},
		idempotent: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("Failed to update issue %s: %w", issueKey, err)
	}
	c.cacheDelete(ctx, issueCacheKey(issueKey))
	return nil
}

// TransitionIssue moves an issue through the transition with the given id.
func (c *Client) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	err := c.do(ctx, request{
		op:     "transition_issue",
		method: http.MethodPost,
		path:   "/issue/" + url.PathEscape(issueKey) + "/transitions",
		body:   map[string]any{"transition": map[string]string{"id": transitionID}},
	}, nil)
	if err != nil {
		return fmt.Errorf("Failed to transition issue %s: %w", issueKey, err)
	}
	c.cacheDelete(ctx, issueCacheKey(issueKey))
	return nil
}

// AddComment adds a plain-text comment to an issue.
func (c *Client) AddComment(ctx context.Context, issueKey, body string) (model.Comment, error) {
	var out model.Comment
	err := c.do(ctx, request{
		op:     "add_comment",
		method: http.MethodPost,
		path:   "/issue/" + url.PathEscape(issueKey) + "/comment",
		body:   map[string]string{"body": body},
	}, &out)
	if err != nil {
		return model.Comment{}, fmt.Errorf("Failed to add comment to issue %s: %w", issueKey, err)
	}
	c.cacheDelete(ctx, issueCacheKey(issueKey))
	return out, nil
}

// GetTransitions lists the transitions currently available on an issue.
func (c *Client) GetTransitions(ctx context.Context, issueKey string) ([]model.Transition, error) {
	var out struct {
		Transitions []model.Transition `json:"transitions"`
	}
	err := c.do(ctx, request{
		op:         "get_transitions",
		method:     http.MethodGet,
		path:       "/issue/" + url.PathEscape(issueKey) + "/transitions",
		idempotent: true,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("Failed to get transitions for issue %s: %w", issueKey, err)
	}
	return out.Transitions, nil
}
