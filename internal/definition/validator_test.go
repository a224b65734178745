package definition

import (
	"maps"
	"slices"
	"testing"

	"github.com/pitabwire/jiramcp/model"
)

type stubActions map[string]bool

func (s stubActions) Has(name string) bool { return s[name] }

func (s stubActions) Names() []string { return slices.Sorted(maps.Keys(s)) }

func validWorkflow() model.WorkflowDefinition {
	return model.WorkflowDefinition{
		ID:      "wf",
		Name:    "Workflow",
		Trigger: "get_issue",
		Steps: []model.WorkflowStep{
			{ID: "ask", Kind: model.StepQuestion, Message: "?", Options: []string{"Yes", "No"}, Next: "name"},
			{ID: "name", Kind: model.StepInput, Message: "name?", Required: true, Next: "run"},
			{ID: "run", Kind: model.StepAction, Message: "done", Action: "do_it"},
		},
	}
}

func hasCode(errs []VError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidator_valid(t *testing.T) {
	v := NewValidator(stubActions{"do_it": true})
	if errs := v.Validate([]model.WorkflowDefinition{validWorkflow()}); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidator_cases(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.WorkflowDefinition)
		code   string
	}{
		{"missing id", func(w *model.WorkflowDefinition) { w.ID = "" }, "REQUIRED"},
		{"missing name", func(w *model.WorkflowDefinition) { w.Name = "" }, "REQUIRED"},
		{"no steps", func(w *model.WorkflowDefinition) { w.Steps = nil }, "REQUIRED"},
		{"duplicate step", func(w *model.WorkflowDefinition) { w.Steps[1].ID = "ask" }, "DUPLICATE"},
		{"bad kind", func(w *model.WorkflowDefinition) { w.Steps[0].Kind = "branch" }, "INVALID_ENUM"},
		{"missing kind", func(w *model.WorkflowDefinition) { w.Steps[0].Kind = "" }, "REQUIRED"},
		{"dangling next", func(w *model.WorkflowDefinition) { w.Steps[1].Next = "nowhere" }, "REF_NOT_FOUND"},
		{"unknown action", func(w *model.WorkflowDefinition) { w.Steps[2].Action = "nope" }, "REF_NOT_FOUND"},
		{"action without handler", func(w *model.WorkflowDefinition) { w.Steps[2].Action = "" }, "REQUIRED"},
		{"options on input", func(w *model.WorkflowDefinition) { w.Steps[1].Options = []string{"a"} }, "NOT_ALLOWED"},
		{"action on question", func(w *model.WorkflowDefinition) { w.Steps[0].Action = "do_it" }, "NOT_ALLOWED"},
		{"reserved alias", func(w *model.WorkflowDefinition) { w.Steps[1].StoreAs = "run_result" }, "RESERVED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := validWorkflow()
			tt.mutate(&wf)
			errs := NewValidator(stubActions{"do_it": true}).Validate([]model.WorkflowDefinition{wf})
			if !hasCode(errs, tt.code) {
				t.Errorf("Validate() = %v, want code %s", errs, tt.code)
			}
		})
	}
}

func TestValidator_duplicate_workflow_ids(t *testing.T) {
	v := NewValidator(nil)
	a := validWorkflow()
	b := validWorkflow()
	errs := v.Validate([]model.WorkflowDefinition{a, b})
	if !hasCode(errs, "DUPLICATE") {
		t.Errorf("Validate() = %v, want DUPLICATE", errs)
	}
}

func TestValidator_cycles_are_allowed(t *testing.T) {
	wf := model.WorkflowDefinition{
		ID:   "loop",
		Name: "Loop",
		Steps: []model.WorkflowStep{
			{ID: "a", Kind: model.StepInput, Next: "b"},
			{ID: "b", Kind: model.StepInput, Next: "a"},
		},
	}
	if errs := NewValidator(nil).Validate([]model.WorkflowDefinition{wf}); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors for a cyclic chain", errs)
	}
}

func TestValidator_nil_actions_skips_handler_check(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[2].Action = "anything"
	if errs := NewValidator(nil).Validate([]model.WorkflowDefinition{wf}); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestVError_Error(t *testing.T) {
	e := VError{Path: "workflows[0].id", Code: "REQUIRED", Message: "id is required"}
	if got := e.Error(); got != "workflows[0].id: id is required" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidator_unknownActionListsHandlers(t *testing.T) {
	wf := validWorkflow()
	wf.Steps[2].Action = "nope"

	errs := NewValidator(stubActions{"do_it": true, "archive": true}).Validate([]model.WorkflowDefinition{wf})
	if len(errs) != 1 {
		t.Fatalf("Validate() = %v, want one error", errs)
	}
	want := `action handler "nope" is not registered (available: archive, do_it)`
	if errs[0].Message != want {
		t.Errorf("message = %q, want %q", errs[0].Message, want)
	}

	errs = NewValidator(stubActions{}).Validate([]model.WorkflowDefinition{wf})
	if len(errs) != 1 || errs[0].Message != `action handler "nope" is not registered (available: none)` {
		t.Errorf("Validate() = %v", errs)
	}
}
