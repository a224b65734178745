package model

// User is a Jira account reference.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active,omitempty"`
}

// NamedRef is the common {id, name} shape used for statuses, priorities and
// resolutions.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// IssueType describes an issue type.
type IssueType struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	HierarchyLevel int    `json:"hierarchyLevel"`
	Subtask        bool   `json:"subtask,omitempty"`
}

// ProjectRef is the project reference embedded in an issue.
type ProjectRef struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueFields holds the subset of issue fields the server requests.
type IssueFields struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Status      NamedRef   `json:"status"`
	Priority    *NamedRef  `json:"priority,omitempty"`
	Assignee    *User      `json:"assignee,omitempty"`
	Reporter    *User      `json:"reporter,omitempty"`
	Created     string     `json:"created"`
	Updated     string     `json:"updated"`
	Resolution  *NamedRef  `json:"resolution,omitempty"`
	IssueType   IssueType  `json:"issuetype"`
	Project     ProjectRef `json:"project"`
}

// Issue is a single Jira issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self,omitempty"`
	Fields IssueFields `json:"fields"`
}

// SearchResult is the response of a JQL search.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// ProjectCategory groups projects.
type ProjectCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Component is a project component.
type Component struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Lead        *User  `json:"lead,omitempty"`
}

// Project is a Jira project.
type Project struct {
	ID              string           `json:"id"`
	Key             string           `json:"key"`
	Name            string           `json:"name"`
	ProjectTypeKey  string           `json:"projectTypeKey"`
	Simplified      bool             `json:"simplified,omitempty"`
	IsPrivate       bool             `json:"isPrivate"`
	Archived        bool             `json:"archived"`
	Lead            *User            `json:"lead,omitempty"`
	ProjectCategory *ProjectCategory `json:"projectCategory,omitempty"`
	IssueTypes      []IssueType      `json:"issueTypes,omitempty"`
	Components      []Component      `json:"components,omitempty"`
}

// Comment is an issue comment.
type Comment struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Author  *User  `json:"author,omitempty"`
	Created string `json:"created"`
}

// Transition is an available workflow transition on an issue.
type Transition struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	To   NamedRef `json:"to"`
}
