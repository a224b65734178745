package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/tools"
)

// ==========================================================================
// Circuit Breaker
// ==========================================================================

func TestResilience_CircuitBreakerTripsOnConsecutiveFailures(t *testing.T) {
	h := NewTestHarness(t, WithCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpSearch).RespondWithError(http.StatusInternalServerError, "database unavailable")

	for range 3 {
		got := h.ErrorText(c, tools.ToolGetBugs, map[string]any{"projectKey": "PROJ"})
		assert.Equal(t, "Error calling Jira API: Failed to search issues: Jira API error: database unavailable", got)
	}
	h.Jira.AssertCalled(t, OpSearch, 3)

	got := h.ErrorText(c, tools.ToolGetBugs, map[string]any{"projectKey": "PROJ"})
	assert.Contains(t, got, "circuit breaker is open")
	h.Jira.AssertCalled(t, OpSearch, 3)
}

func TestResilience_CircuitBreakerRecoversAfterTimeout(t *testing.T) {
	h := NewTestHarness(t, WithCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          300 * time.Millisecond,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpSearch).RespondWith(http.StatusInternalServerError, nil)
	for range 2 {
		h.ErrorText(c, tools.ToolGetTasks, nil)
	}
	assert.Contains(t, h.ErrorText(c, tools.ToolGetTasks, nil), "circuit breaker is open")

	time.Sleep(400 * time.Millisecond)
	h.Jira.Reset(OpSearch)
	h.Jira.On(OpSearch).RespondWith(http.StatusOK, SearchFixture(IssueFixture("PROJ-5", "Write docs", "Task", "To Do")))

	got := h.Text(c, tools.ToolGetTasks, nil)
	assert.True(t, strings.HasPrefix(got, "Found 1 tasks:"), got)
	assert.Contains(t, got, "PROJ-5")
}

func TestResilience_NotFoundDoesNotTripBreaker(t *testing.T) {
	h := NewTestHarness(t, WithCircuitBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 2,
		Timeout:          30 * time.Second,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpGetIssue).RespondWithError(http.StatusNotFound, "Issue does not exist")
	for range 4 {
		got := h.ErrorText(c, tools.ToolGetIssue, map[string]any{"issueKey": "PROJ-404"})
		assert.Equal(t, "Error calling Jira API: Failed to fetch issue PROJ-404: "+
			"Resource not found. Please check your project key or issue key.", got)
	}
	h.Jira.AssertCalled(t, OpGetIssue, 4)
}

// ==========================================================================
// Retries
// ==========================================================================

func TestResilience_RetriesIdempotentRead(t *testing.T) {
	h := NewTestHarness(t, WithRetry(config.RetryConfig{
		MaxAttempts:    3,
		BackoffInitial: 10 * time.Millisecond,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpGetIssue).
		RespondWith(http.StatusServiceUnavailable, nil).
		RespondWith(http.StatusBadGateway, nil).
		RespondWith(http.StatusOK, IssueFixture("PROJ-1", "Login fails", "Bug", "To Do"))

	got := h.Text(c, tools.ToolGetIssue, map[string]any{"issueKey": "PROJ-1"})
	assert.Contains(t, got, "**PROJ-1** - Login fails")
	h.Jira.AssertCalled(t, OpGetIssue, 3)
}

func TestResilience_GivesUpAfterMaxAttempts(t *testing.T) {
	h := NewTestHarness(t, WithRetry(config.RetryConfig{
		MaxAttempts:    2,
		BackoffInitial: 10 * time.Millisecond,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpGetProjects).RespondWith(http.StatusServiceUnavailable, nil)

	got := h.ErrorText(c, tools.ToolGetProjects, nil)
	assert.Equal(t, "Error calling Jira API: Failed to fetch projects: Jira API error: Request failed with status code 503", got)
	h.Jira.AssertCalled(t, OpGetProjects, 2)
}

func TestResilience_CreateNotRetriedOnServerError(t *testing.T) {
	h := NewTestHarness(t, WithRetry(config.RetryConfig{
		MaxAttempts:    3,
		BackoffInitial: 10 * time.Millisecond,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpCreateIssue).RespondWith(http.StatusBadGateway, nil)

	got := h.ErrorText(c, tools.ToolCreateIssue, map[string]any{
		"projectKey": "PROJ", "summary": "New", "description": "Body",
	})
	assert.Contains(t, got, "Failed to create issue")
	h.Jira.AssertCalled(t, OpCreateIssue, 1)
}

func TestResilience_CreateRetriedOnRateLimit(t *testing.T) {
	h := NewTestHarness(t, WithRetry(config.RetryConfig{
		MaxAttempts:    3,
		BackoffInitial: 10 * time.Millisecond,
	}))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpCreateIssue).
		RespondWith(http.StatusTooManyRequests, nil).
		RespondWith(http.StatusCreated, map[string]any{"id": "10050", "key": "PROJ-50"})
	h.Jira.On(OpGetIssue).RespondWith(http.StatusOK, IssueFixture("PROJ-50", "New", "Task", "To Do"))

	got := h.Text(c, tools.ToolCreateIssue, map[string]any{
		"projectKey": "PROJ", "summary": "New", "description": "Body",
	})
	assert.Contains(t, got, "**PROJ-50** - New")
	h.Jira.AssertCalled(t, OpCreateIssue, 2)
}

func TestResilience_SlowJiraHitsToolTimeout(t *testing.T) {
	h := NewTestHarness(t, WithToolTimeout(200*time.Millisecond))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpGetProjects).RespondWithDelay(3*time.Second, http.StatusOK, nil)

	start := time.Now()
	res := h.Call(c, tools.ToolGetProjects, nil)
	assert.True(t, res.IsError, ResultText(res))
	assert.Contains(t, ResultText(res), "Error calling Jira API: Failed to fetch projects:")
	assert.Contains(t, ResultText(res), "context deadline exceeded")
	assert.Less(t, time.Since(start), 2*time.Second)

	// The session survives the timed-out call.
	h.Jira.On(OpGetProjects).RespondWith(http.StatusOK, []any{ProjectFixture("PROJ", "Project One")})
	assert.Contains(t, h.Text(c, tools.ToolGetProjects, nil), "Found 1 projects:")
}

// ==========================================================================
// Caching
// ==========================================================================

func TestResilience_IssueReadsAreCached(t *testing.T) {
	for _, driver := range []string{"memory", "redis"} {
		t.Run(driver, func(t *testing.T) {
			h := NewTestHarness(t, WithCacheDriver(driver))
			c := h.Connect(h.GenerateToken(UserClaims()))

			h.Jira.On(OpGetIssue).RespondWith(http.StatusOK, IssueFixture("PROJ-1", "Login fails", "Bug", "To Do"))
			h.Jira.On(OpUpdateIssue).RespondWith(http.StatusNoContent, nil)

			h.Text(c, tools.ToolGetIssue, map[string]any{"issueKey": "PROJ-1"})
			h.Text(c, tools.ToolGetIssue, map[string]any{"issueKey": "PROJ-1"})
			h.Jira.AssertCalled(t, OpGetIssue, 1)

			if h.Redis != nil {
				assert.True(t, h.Redis.Exists("jiramcp:issue:PROJ-1"))
			}

			h.Text(c, tools.ToolUpdateIssue, map[string]any{"issueKey": "PROJ-1", "summary": "Login fails on Safari"})
			if h.Redis != nil {
				assert.False(t, h.Redis.Exists("jiramcp:issue:PROJ-1"))
			}

			h.Text(c, tools.ToolGetIssue, map[string]any{"issueKey": "PROJ-1"})
			h.Jira.AssertCalled(t, OpGetIssue, 2)
		})
	}
}

func TestResilience_NoCacheDriver(t *testing.T) {
	h := NewTestHarness(t, WithCacheDriver("none"))
	c := h.Connect(h.GenerateToken(UserClaims()))

	h.Jira.On(OpGetProject).RespondWith(http.StatusOK, ProjectFixture("PROJ", "Project One"))

	h.Text(c, tools.ToolGetProject, map[string]any{"projectKey": "PROJ"})
	h.Text(c, tools.ToolGetIssueTypes, map[string]any{"projectKey": "PROJ"})
	h.Jira.AssertCalled(t, OpGetProject, 2)
}

func TestResilience_Readiness(t *testing.T) {
	h := NewTestHarness(t)

	h.Jira.On(OpMyself).RespondWith(http.StatusOK, map[string]any{"accountId": "abc", "displayName": "Ops"})
	resp := h.Do(http.MethodGet, "/ready", "", "", nil)
	body := h.ReadBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	h.Jira.Reset(OpMyself)
	h.Jira.On(OpMyself).RespondWithError(http.StatusUnauthorized)
	resp = h.Do(http.MethodGet, "/ready", "", "", nil)
	body = h.ReadBody(resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, body)
	assert.Contains(t, body, "jira")
}
