package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pitabwire/jiramcp/model"
)

// GetProjects lists every project visible to the account.
func (c *Client) GetProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	err := c.do(ctx, request{op: "get_projects", method: http.MethodGet, path: "/project", idempotent: true}, &out)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch projects: %w", err)
	}
	return out, nil
}

// GetProject fetches one project by key.
func (c *Client) GetProject(ctx context.Context, projectKey string) (model.Project, error) {
	p, err := c.project(ctx, projectKey)
	if err != nil {
		return model.Project{}, fmt.Errorf("Failed to fetch project %s: %w", projectKey, err)
	}
	return p, nil
}

// GetIssueTypes returns the issue types configured for a project.
func (c *Client) GetIssueTypes(ctx context.Context, projectKey string) ([]model.IssueType, error) {
	p, err := c.project(ctx, projectKey)
	if err != nil {
		return nil, fmt.Errorf("Failed to get issue types for project %s: %w", projectKey, err)
	}
	return p.IssueTypes, nil
}

// GetProjectComponents lists a project's components.
func (c *Client) GetProjectComponents(ctx context.Context, projectKey string) ([]model.Component, error) {
	var out []model.Component
	err := c.do(ctx, request{
		op:         "get_project_components",
		method:     http.MethodGet,
		path:       "/project/" + url.PathEscape(projectKey) + "/components",
		idempotent: true,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("Failed to get components for project %s: %w", projectKey, err)
	}
	return out, nil
}

func (c *Client) project(ctx context.Context, projectKey string) (model.Project, error) {
	var out model.Project
	key := projectCacheKey(projectKey)
	if c.cacheGet(ctx, "project", key, &out) {
		return out, nil
	}
	err := c.do(ctx, request{
		op:         "get_project",
		method:     http.MethodGet,
		path:       "/project/" + url.PathEscape(projectKey),
		idempotent: true,
	}, &out)
	if err != nil {
		return model.Project{}, err
	}
	c.cacheSet(ctx, key, out)
	return out, nil
}
