package model

import "time"

// StepKind identifies how a workflow step interacts with the caller.
type StepKind string

// Step kinds.
const (
	// StepQuestion presents a fixed set of choices.
	StepQuestion StepKind = "question"
	// StepInput requests free text.
	StepInput StepKind = "input"
	// StepAction runs a registered action handler against the accumulated
	// data without caller interaction.
	StepAction StepKind = "action"
)

// Valid reports whether k is one of the known step kinds.
func (k StepKind) Valid() bool {
	switch k {
	case StepQuestion, StepInput, StepAction:
		return true
	}
	return false
}

// WorkflowStep is one node in a linear workflow chain.
//
// Options and Required are advisory: they are shown to the caller but the
// engine never checks a response against them.
type WorkflowStep struct {
	ID       string   `yaml:"id"                json:"id"`
	Kind     StepKind `yaml:"kind"              json:"kind"`
	Message  string   `yaml:"message"           json:"message"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
	Required bool     `yaml:"required"          json:"required,omitempty"`
	Next     string   `yaml:"next,omitempty"    json:"next,omitempty"`

	// Action names the handler run by an action step.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// StoreAs is an extra data key the response is recorded under, in
	// addition to the step id.
	StoreAs string `yaml:"store_as,omitempty" json:"store_as,omitempty"`
}

// Terminal reports whether the step has no successor.
func (s WorkflowStep) Terminal() bool {
	return s.Next == ""
}

// WorkflowDefinition is an immutable workflow template. Steps[0] is the
// entry point.
type WorkflowDefinition struct {
	ID          string         `yaml:"id"          json:"id"`
	Name        string         `yaml:"name"        json:"name"`
	Description string         `yaml:"description" json:"description"`
	Trigger     string         `yaml:"trigger"     json:"trigger,omitempty"`
	Steps       []WorkflowStep `yaml:"steps"       json:"steps"`

	// Checksum is computed at load time and not part of the YAML.
	Checksum string `yaml:"-" json:"-"`
	// SourceFile records the originating file path. Empty for built-ins.
	SourceFile string `yaml:"-" json:"-"`
}

// Step returns the step with the given id.
func (d WorkflowDefinition) Step(id string) (WorkflowStep, bool) {
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return WorkflowStep{}, false
}

// EntryStep returns the first step of the chain.
func (d WorkflowDefinition) EntryStep() (WorkflowStep, bool) {
	if len(d.Steps) == 0 {
		return WorkflowStep{}, false
	}
	return d.Steps[0], true
}

// WorkflowInstance is one in-progress run of a definition. It is keyed by
// its DefinitionID; at most one instance per definition is active.
type WorkflowInstance struct {
	DefinitionID  string    `json:"definition_id"`
	CurrentStepID string    `json:"current_step_id"`
	Data          Data      `json:"data"`
	Completed     bool      `json:"completed"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a copy of the instance whose Data can be mutated without
// affecting the original.
func (i WorkflowInstance) Clone() WorkflowInstance {
	i.Data = i.Data.Clone()
	return i
}

// RespondResult is the outcome of feeding a response into an instance.
// NextStep is set while the workflow continues; Result holds the final data
// once it completes.
type RespondResult struct {
	Completed bool          `json:"completed"`
	NextStep  *WorkflowStep `json:"next_step,omitempty"`
	Result    Data          `json:"result,omitempty"`
}

// ActiveWorkflow is a list-view entry for an active instance.
type ActiveWorkflow struct {
	DefinitionID  string `json:"definition_id"`
	CurrentStepID string `json:"current_step_id"`
	Completed     bool   `json:"completed"`
}

// Workflow event types.
const (
	EventStarted       = "started"
	EventStepCompleted = "step_completed"
	EventActionFailed  = "action_failed"
	EventCompleted     = "completed"
	EventCancelled     = "cancelled"
)

// WorkflowEvent records a transition in a workflow's audit trail.
type WorkflowEvent struct {
	ID           string    `json:"id"`
	DefinitionID string    `json:"definition_id"`
	StepID       string    `json:"step_id"`
	Type         string    `json:"type"`
	Response     string    `json:"response,omitempty"`
	Error        string    `json:"error,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
