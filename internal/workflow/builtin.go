package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/jiramcp/internal/invoker"
	"github.com/pitabwire/jiramcp/model"
)

// Built-in workflow and action names.
const (
	TestCaseGenerationID    = "test_case_generation"
	GenerateTestCasesAction = "generate_test_cases"

	// IssueKey is the data key the triggering tool stores the fetched issue
	// under.
	IssueKey = "issue"
	// FilenameKey is the data key the chosen test case file name is stored
	// under.
	FilenameKey = "filename"
)

// errMissingTestCaseData is returned by the generate_test_cases action.
var errMissingTestCaseData = errors.New("Missing required data: issue or filename")

// TestCaseGeneration returns the built-in definition that walks the caller
// through naming a test case file after an issue is fetched.
func TestCaseGeneration() model.WorkflowDefinition {
	return model.WorkflowDefinition{
		ID:          TestCaseGenerationID,
		Name:        "Test Case Generation",
		Description: "Generate test cases for a Jira issue",
		Trigger:     "get_issue",
		Steps: []model.WorkflowStep{
			{
				ID:      "ask_generate_test_cases",
				Kind:    model.StepQuestion,
				Message: "Would you like to generate test cases for this issue?",
				Options: []string{"Yes", "No"},
				Next:    "get_filename",
			},
			{
				ID:       "get_filename",
				Kind:     model.StepInput,
				Message:  "Please provide the name for the test case workflow markdown file:",
				Required: true,
				Next:     "generate_test_cases",
				StoreAs:  FilenameKey,
			},
			{
				ID:      "generate_test_cases",
				Kind:    model.StepAction,
				Message: "Test case generation workflow completed. You can now use the provided filename to create your test cases.",
				Action:  GenerateTestCasesAction,
			},
		},
	}
}

// Builtins returns every built-in workflow definition in registration order.
func Builtins() []model.WorkflowDefinition {
	return []model.WorkflowDefinition{TestCaseGeneration()}
}

// RegisterBuiltinActions adds the handlers used by the built-in workflows.
func RegisterBuiltinActions(actions *invoker.ActionRegistry) {
	actions.Register(GenerateTestCasesAction, invoker.ActionFunc(generateTestCases))
}

// generateTestCases checks that an issue and file name were collected and
// reports what will be generated.
func generateTestCases(_ context.Context, data model.Data) (model.ResultValue, error) {
	issue, ok := data.Record(IssueKey)
	filename, _ := data.Text(FilenameKey)
	if !ok || len(issue) == 0 || filename == "" {
		return nil, errMissingTestCaseData
	}

	key := issue.String("key")
	return model.ResultValue{
		"success":      true,
		"issueKey":     key,
		"issueSummary": issue.Nested("fields").String("summary"),
		"filename":     filename,
		"message":      fmt.Sprintf("Ready to generate test cases for %s with filename: %s", key, filename),
	}, nil
}
