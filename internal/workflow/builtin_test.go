package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/pitabwire/jiramcp/internal/definition"
	"github.com/pitabwire/jiramcp/internal/invoker"
	"github.com/pitabwire/jiramcp/model"
)

func TestTestCaseGeneration_definition(t *testing.T) {
	def := TestCaseGeneration()

	if def.Trigger != "get_issue" {
		t.Errorf("Trigger = %q, want get_issue", def.Trigger)
	}
	wantSteps := []struct {
		id   string
		kind model.StepKind
		next string
	}{
		{"ask_generate_test_cases", model.StepQuestion, "get_filename"},
		{"get_filename", model.StepInput, "generate_test_cases"},
		{"generate_test_cases", model.StepAction, ""},
	}
	if len(def.Steps) != len(wantSteps) {
		t.Fatalf("steps = %d, want %d", len(def.Steps), len(wantSteps))
	}
	for i, want := range wantSteps {
		got := def.Steps[i]
		if got.ID != want.id || got.Kind != want.kind || got.Next != want.next {
			t.Errorf("step %d = {%s %s %s}, want %+v", i, got.ID, got.Kind, got.Next, want)
		}
	}
	if opts := def.Steps[0].Options; len(opts) != 2 || opts[0] != "Yes" || opts[1] != "No" {
		t.Errorf("options = %v", opts)
	}

	actions := invoker.NewActionRegistry()
	RegisterBuiltinActions(actions)
	if errs := definition.NewValidator(actions).Validate(Builtins()); len(errs) != 0 {
		t.Errorf("built-in definition is invalid: %v", errs)
	}
}

func TestGenerateTestCases(t *testing.T) {
	issue := model.RecordValue{
		"key":    "PROJ-7",
		"fields": map[string]any{"summary": "Checkout total is wrong"},
	}

	tests := []struct {
		name    string
		data    model.Data
		wantErr bool
	}{
		{"ok", model.Data{IssueKey: issue, FilenameKey: model.TextValue("checkout.md")}, false},
		{"no issue", model.Data{FilenameKey: model.TextValue("checkout.md")}, true},
		{"empty issue", model.Data{IssueKey: model.RecordValue{}, FilenameKey: model.TextValue("x.md")}, true},
		{"no filename", model.Data{IssueKey: issue}, true},
		{"empty filename", model.Data{IssueKey: issue, FilenameKey: model.TextValue("")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := generateTestCases(context.Background(), tt.data)
			if tt.wantErr {
				if !errors.Is(err, errMissingTestCaseData) {
					t.Errorf("error = %v, want missing data", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result["issueKey"] != "PROJ-7" || result["issueSummary"] != "Checkout total is wrong" {
				t.Errorf("result = %v", result)
			}
			want := "Ready to generate test cases for PROJ-7 with filename: checkout.md"
			if result["message"] != want {
				t.Errorf("message = %v, want %q", result["message"], want)
			}
		})
	}
}
