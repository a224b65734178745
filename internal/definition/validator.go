package definition

import (
	"fmt"
	"strings"

	"github.com/pitabwire/jiramcp/model"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ActionLookup reports which action handlers are registered.
type ActionLookup interface {
	Has(name string) bool
	Names() []string
}

// Validator validates workflow definitions structurally and referentially.
// It does not reject cycles in step chains.
type Validator struct {
	actions ActionLookup
}

// NewValidator creates a new Validator. actions may be nil to skip the
// handler existence check.
func NewValidator(actions ActionLookup) *Validator {
	return &Validator{actions: actions}
}

// Validate checks all definitions, including duplicate ids across the set.
func (v *Validator) Validate(defs []model.WorkflowDefinition) []VError {
	var errs []VError
	seen := make(map[string]string)
	for i, def := range defs {
		prefix := fmt.Sprintf("workflows[%d]", i)
		if def.ID != "" {
			if prev, dup := seen[def.ID]; dup {
				errs = append(errs, VError{
					Path:    prefix + ".id",
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("workflow %q already declared at %s", def.ID, prev),
				})
			}
			seen[def.ID] = prefix
		}
		errs = append(errs, v.validateWorkflow(prefix, def)...)
	}
	return errs
}

func (v *Validator) validateWorkflow(prefix string, w model.WorkflowDefinition) []VError {
	var errs []VError

	if w.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	}
	if w.Name == "" {
		errs = append(errs, VError{Path: prefix + ".name", Code: "REQUIRED", Message: "name is required"})
	}
	if len(w.Steps) == 0 {
		errs = append(errs, VError{Path: prefix + ".steps", Code: "REQUIRED", Message: "at least one step is required"})
	}

	stepIDs := make(map[string]bool)
	for i, s := range w.Steps {
		sp := fmt.Sprintf("%s.steps[%d]", prefix, i)
		if s.ID == "" {
			errs = append(errs, VError{Path: sp + ".id", Code: "REQUIRED", Message: "step id is required"})
		} else if stepIDs[s.ID] {
			errs = append(errs, VError{Path: sp + ".id", Code: "DUPLICATE", Message: fmt.Sprintf("duplicate step id %q", s.ID)})
		}
		stepIDs[s.ID] = true

		switch {
		case s.Kind == "":
			errs = append(errs, VError{Path: sp + ".kind", Code: "REQUIRED", Message: "step kind is required"})
		case !s.Kind.Valid():
			errs = append(errs, VError{Path: sp + ".kind", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid step kind %q", s.Kind)})
		}

		if len(s.Options) > 0 && s.Kind != model.StepQuestion {
			errs = append(errs, VError{Path: sp + ".options", Code: "NOT_ALLOWED", Message: "options are only allowed on question steps"})
		}
		if s.Kind == model.StepAction {
			errs = append(errs, v.validateAction(sp, s)...)
		} else if s.Action != "" {
			errs = append(errs, VError{Path: sp + ".action", Code: "NOT_ALLOWED", Message: "action is only allowed on action steps"})
		}
		if strings.HasSuffix(s.StoreAs, "_result") {
			errs = append(errs, VError{Path: sp + ".store_as", Code: "RESERVED", Message: "store_as must not end in _result"})
		}
	}

	// Validate next references resolve within the workflow.
	for i, s := range w.Steps {
		if s.Next != "" && !stepIDs[s.Next] {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.steps[%d].next", prefix, i),
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("step %q not found", s.Next),
			})
		}
	}

	return errs
}

func (v *Validator) validateAction(prefix string, s model.WorkflowStep) []VError {
	if s.Action == "" {
		return []VError{{Path: prefix + ".action", Code: "REQUIRED", Message: "action steps must name a handler"}}
	}
	if v.actions != nil && !v.actions.Has(s.Action) {
		return []VError{{
			Path:    prefix + ".action",
			Code:    "REF_NOT_FOUND",
			Message: fmt.Sprintf("action handler %q is not registered (available: %s)", s.Action, availableActions(v.actions.Names())),
		}}
	}
	return nil
}

func availableActions(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
