package jira

import "fmt"

// ProjectIssuesJQL lists a project's issues, newest first.
func ProjectIssuesJQL(projectKey string) string {
	return fmt.Sprintf("project = %s ORDER BY created DESC", projectKey)
}

// MyIssuesJQL lists issues assigned to the authenticated user.
func MyIssuesJQL() string {
	return "assignee = currentUser() ORDER BY updated DESC"
}

// OpenIssuesJQL lists issues that are neither Done nor Closed, optionally
// within one project.
func OpenIssuesJQL(projectKey string) string {
	return projectFilter(projectKey) + `status != "Done" AND status != "Closed" ORDER BY priority DESC, updated DESC`
}

// IssueTypeJQL lists issues of one type, optionally within one project.
func IssueTypeJQL(projectKey, issueType string) string {
	return fmt.Sprintf(`%sissuetype = "%s" ORDER BY priority DESC, created DESC`, projectFilter(projectKey), issueType)
}

func projectFilter(projectKey string) string {
	if projectKey == "" {
		return ""
	}
	return fmt.Sprintf("project = %s AND ", projectKey)
}
