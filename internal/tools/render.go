package tools

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/pitabwire/jiramcp/model"
)

// entrySeparator joins list entries.
const entrySeparator = "\n---\n"

// jiraTimeLayouts are the timestamp formats Jira returns, tried in order.
var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// localDate renders a Jira timestamp as M/D/YYYY in the offset it carries.
func localDate(s string) string {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return "Invalid Date"
}

func displayName(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}

func refName(r *model.NamedRef) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func categoryName(c *model.ProjectCategory) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["localDate"] = localDate
	fm["displayName"] = displayName
	fm["refName"] = refName
	fm["categoryName"] = categoryName
	return fm
}

const templateText = `
{{- define "project" -}}
**{{ .Name }}** ({{ .Key }})
Type: {{ .ProjectTypeKey }}
Lead: {{ displayName .Lead | default "N/A" }}
Private: {{ ternary "Yes" "No" .IsPrivate }}
Archived: {{ ternary "Yes" "No" .Archived }}
{{ end -}}

{{- define "project_details" -}}
Project Details:

**{{ .Name }}** ({{ .Key }})
Type: {{ .ProjectTypeKey }}
Lead: {{ displayName .Lead | default "N/A" }}
Private: {{ ternary "Yes" "No" .IsPrivate }}
Archived: {{ ternary "Yes" "No" .Archived }}
Category: {{ categoryName .ProjectCategory | default "N/A" }}
Issue Types: {{ len .IssueTypes }}
Components: {{ len .Components }}
{{- end -}}

{{- define "issue_search" -}}
**{{ .Key }}** - {{ .Fields.Summary }}
Type: {{ .Fields.IssueType.Name }}
Status: {{ .Fields.Status.Name }}
Priority: {{ refName .Fields.Priority | default "None" }}
Assignee: {{ displayName .Fields.Assignee | default "Unassigned" }}
Reporter: {{ displayName .Fields.Reporter | default "Unknown" }}
Created: {{ localDate .Fields.Created }}
Updated: {{ localDate .Fields.Updated }}
{{ end -}}

{{- define "issue_details" -}}
Issue Details:

**{{ .Key }}** - {{ .Fields.Summary }}
Type: {{ .Fields.IssueType.Name }}
Status: {{ .Fields.Status.Name }}
Priority: {{ refName .Fields.Priority | default "None" }}
Assignee: {{ displayName .Fields.Assignee | default "Unassigned" }}
Reporter: {{ displayName .Fields.Reporter | default "Unknown" }}
Created: {{ localDate .Fields.Created }}
Updated: {{ localDate .Fields.Updated }}
Description: {{ .Fields.Description | default "No description" }}
Resolution: {{ refName .Fields.Resolution | default "Unresolved" }}
{{- end -}}

{{- define "issue_project" -}}
**{{ .Key }}** - {{ .Fields.Summary }}
Type: {{ .Fields.IssueType.Name }}
Status: {{ .Fields.Status.Name }}
Priority: {{ refName .Fields.Priority | default "None" }}
Assignee: {{ displayName .Fields.Assignee | default "Unassigned" }}
Created: {{ localDate .Fields.Created }}
{{ end -}}

{{- define "issue_mine" -}}
**{{ .Key }}** - {{ .Fields.Summary }}
Type: {{ .Fields.IssueType.Name }}
Status: {{ .Fields.Status.Name }}
Priority: {{ refName .Fields.Priority | default "None" }}
Project: {{ .Fields.Project.Name }}
Updated: {{ localDate .Fields.Updated }}
{{ end -}}

{{- define "issue_open" -}}
**{{ .Key }}** - {{ .Fields.Summary }}
Type: {{ .Fields.IssueType.Name }}
Status: {{ .Fields.Status.Name }}
Priority: {{ refName .Fields.Priority | default "None" }}
Assignee: {{ displayName .Fields.Assignee | default "Unassigned" }}
Project: {{ .Fields.Project.Name }}
{{ end -}}

{{- define "issue_typed" -}}
**{{ .Key }}** - {{ .Fields.Summary }}
Status: {{ .Fields.Status.Name }}
Priority: {{ refName .Fields.Priority | default "None" }}
Assignee: {{ displayName .Fields.Assignee | default "Unassigned" }}
Project: {{ .Fields.Project.Name }}
Created: {{ localDate .Fields.Created }}
{{ end -}}

{{- define "issue_created" -}}
Issue created successfully:

**{{ .Key }}** - {{ .Fields.Summary }}
Type: {{ .Fields.IssueType.Name }}
Status: {{ .Fields.Status.Name }}
Project: {{ .Fields.Project.Name }}
Created: {{ localDate .Fields.Created }}
{{- end -}}

{{- define "comment" -}}
Comment added successfully to {{ .IssueKey }}:

Comment ID: {{ .Comment.ID }}
Author: {{ displayName .Comment.Author | default "Unknown" }}
Created: {{ localDate .Comment.Created }}
Body: {{ .Comment.Body }}
{{- end -}}

{{- define "issue_type" -}}
**{{ .Name }}** ({{ .ID }})
Description: {{ .Description | default "No description" }}
Hierarchy Level: {{ .HierarchyLevel }}
{{ end -}}

{{- define "component" -}}
**{{ .Name }}**
ID: {{ .ID }}
Description: {{ .Description | default "No description" }}
Lead: {{ displayName .Lead | default "No lead" }}
{{ end -}}

{{- define "transition" -}}
**{{ .Name }}** ({{ .ID }})
To: {{ .To.Name }}
{{ end -}}

{{- define "step_suffix" -}}
{{ if .Options }}

**Options:** {{ join ", " .Options }}{{ end }}
{{- if .Required }}

**Required:** Yes{{ end }}
{{- end -}}

{{- define "current_step" -}}
**Current Step:** {{ .ID }}

**Message:** {{ .Message }}
{{- template "step_suffix" . -}}
{{- end -}}

{{- define "next_step" -}}
**Next Step:** {{ .ID }}

**Message:** {{ .Message }}
{{- template "step_suffix" . -}}
{{- end -}}

{{- define "workflow_triggered" }}

---
**Workflow Triggered: {{ .Name }}**

{{ .Step.Message }}
{{- if .Step.Options }}

Options: {{ join ", " .Step.Options }}
{{- end }}

Use the 'respond_to_workflow' tool with workflowId '{{ .ID }}' to continue.
{{- end -}}

{{- define "workflow_started" -}}
**Workflow Started: {{ .Name }}**

{{ template "current_step" .Step }}
{{- end -}}

{{- define "active_workflow" -}}
**Workflow ID:** {{ .DefinitionID }}
**Current Step:** {{ .CurrentStepID }}
**Status:** {{ ternary "Completed" "Active" .Completed }}
{{- end -}}
`

var templates = template.Must(template.New("tools").Funcs(funcMap()).Parse(templateText))

// render executes the named template.
func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

// renderEntries renders each item with the named template and joins the
// results with sep.
func renderEntries[T any](name, sep string, items []T) (string, error) {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		s, err := render(name, item)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

// renderList renders a header followed by the entries.
func renderList[T any](header, name string, items []T) (string, error) {
	body, err := renderEntries(name, entrySeparator, items)
	if err != nil {
		return "", err
	}
	return header + body, nil
}

// projectSuffix returns " for project P" when a project filter was given.
func projectSuffix(projectKey string) string {
	if projectKey == "" {
		return ""
	}
	return " for project " + projectKey
}

// completionMessage picks the message shown when a workflow completes: a
// top-level "message" entry, then the message of any action result.
func completionMessage(data model.Data) string {
	if msg, ok := data.Text("message"); ok && msg != "" {
		return msg
	}
	for _, key := range slices.Sorted(maps.Keys(data)) {
		if res, ok := data.Result(key); ok {
			if msg, ok := res["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return "Workflow has been completed."
}
