package tools

import (
	"context"
	"sync"

	"github.com/pitabwire/jiramcp/model"
)

// fakeRepo is an in-memory IssueRepository that records the arguments it
// was called with.
type fakeRepo struct {
	mu sync.Mutex

	projects    []model.Project
	project     model.Project
	search      model.SearchResult
	issue       model.Issue
	issues      []model.Issue
	created     model.Issue
	comment     model.Comment
	transitions []model.Transition
	issueTypes  []model.IssueType
	components  []model.Component

	err     error
	panicOn string
	// block makes GetProjects wait for its context to end.
	block bool

	calls      []string
	jql        string
	maxResults int
	projectKey string
	issueKey   string
	fields     map[string]any
	createArgs []string
	transition string
	body       string
}

func (f *fakeRepo) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == name {
		panic("boom in " + name)
	}
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeRepo) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRepo) GetProjects(ctx context.Context) ([]model.Project, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.record("GetProjects"); err != nil {
		return nil, err
	}
	return f.projects, nil
}

func (f *fakeRepo) GetProject(_ context.Context, projectKey string) (model.Project, error) {
	f.projectKey = projectKey
	if err := f.record("GetProject"); err != nil {
		return model.Project{}, err
	}
	return f.project, nil
}

func (f *fakeRepo) SearchIssues(_ context.Context, jql string, maxResults, _ int) (model.SearchResult, error) {
	f.jql, f.maxResults = jql, maxResults
	if err := f.record("SearchIssues"); err != nil {
		return model.SearchResult{}, err
	}
	return f.search, nil
}

func (f *fakeRepo) GetIssue(_ context.Context, issueKey string) (model.Issue, error) {
	f.issueKey = issueKey
	if err := f.record("GetIssue"); err != nil {
		return model.Issue{}, err
	}
	return f.issue, nil
}

func (f *fakeRepo) list(name, projectKey string, maxResults int) ([]model.Issue, error) {
	f.projectKey, f.maxResults = projectKey, maxResults
	if err := f.record(name); err != nil {
		return nil, err
	}
	return f.issues, nil
}

func (f *fakeRepo) GetProjectIssues(_ context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return f.list("GetProjectIssues", projectKey, maxResults)
}

func (f *fakeRepo) GetMyIssues(_ context.Context, maxResults int) ([]model.Issue, error) {
	return f.list("GetMyIssues", "", maxResults)
}

func (f *fakeRepo) GetOpenIssues(_ context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return f.list("GetOpenIssues", projectKey, maxResults)
}

func (f *fakeRepo) GetBugs(_ context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return f.list("GetBugs", projectKey, maxResults)
}

func (f *fakeRepo) GetTasks(_ context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return f.list("GetTasks", projectKey, maxResults)
}

func (f *fakeRepo) GetStories(_ context.Context, projectKey string, maxResults int) ([]model.Issue, error) {
	return f.list("GetStories", projectKey, maxResults)
}

func (f *fakeRepo) CreateIssue(_ context.Context, projectKey, summary, description, issueType string) (model.Issue, error) {
	f.createArgs = []string{projectKey, summary, description, issueType}
	if err := f.record("CreateIssue"); err != nil {
		return model.Issue{}, err
	}
	return f.created, nil
}

func (f *fakeRepo) UpdateIssue(_ context.Context, issueKey string, fields map[string]any) error {
	f.issueKey, f.fields = issueKey, fields
	return f.record("UpdateIssue")
}

func (f *fakeRepo) TransitionIssue(_ context.Context, issueKey, transitionID string) error {
	f.issueKey, f.transition = issueKey, transitionID
	return f.record("TransitionIssue")
}

func (f *fakeRepo) AddComment(_ context.Context, issueKey, body string) (model.Comment, error) {
	f.issueKey, f.body = issueKey, body
	if err := f.record("AddComment"); err != nil {
		return model.Comment{}, err
	}
	return f.comment, nil
}

func (f *fakeRepo) GetTransitions(_ context.Context, issueKey string) ([]model.Transition, error) {
	f.issueKey = issueKey
	if err := f.record("GetTransitions"); err != nil {
		return nil, err
	}
	return f.transitions, nil
}

func (f *fakeRepo) GetIssueTypes(_ context.Context, projectKey string) ([]model.IssueType, error) {
	f.projectKey = projectKey
	if err := f.record("GetIssueTypes"); err != nil {
		return nil, err
	}
	return f.issueTypes, nil
}

func (f *fakeRepo) GetProjectComponents(_ context.Context, projectKey string) ([]model.Component, error) {
	f.projectKey = projectKey
	if err := f.record("GetProjectComponents"); err != nil {
		return nil, err
	}
	return f.components, nil
}

func testIssue() model.Issue {
	return model.Issue{
		ID:  "10001",
		Key: "PROJ-1",
		Fields: model.IssueFields{
			Summary:     "Login fails",
			Description: "Steps to reproduce",
			Status:      model.NamedRef{Name: "To Do"},
			Priority:    &model.NamedRef{Name: "High"},
			Assignee:    &model.User{DisplayName: "Ada Lovelace"},
			Reporter:    &model.User{DisplayName: "Grace Hopper"},
			Created:     "2024-01-15T10:30:00.000+0000",
			Updated:     "2024-02-03T12:00:00.000+0000",
			IssueType:   model.IssueType{Name: "Bug"},
			Project:     model.ProjectRef{Key: "PROJ", Name: "Project One"},
		},
	}
}

// bareIssue has no priority, assignee, reporter, description or
// resolution.
func bareIssue() model.Issue {
	return model.Issue{
		ID:  "10002",
		Key: "PROJ-2",
		Fields: model.IssueFields{
			Summary:   "Tidy docs",
			Status:    model.NamedRef{Name: "In Progress"},
			Created:   "2024-03-09T08:00:00.000+0000",
			Updated:   "not a date",
			IssueType: model.IssueType{Name: "Task"},
			Project:   model.ProjectRef{Key: "PROJ", Name: "Project One"},
		},
	}
}
