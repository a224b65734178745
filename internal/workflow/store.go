package workflow

import (
	"context"

	"github.com/pitabwire/jiramcp/model"
)

// InstanceStore holds the active workflow instances, keyed by definition id.
// At most one instance per definition is tracked.
type InstanceStore interface {
	// Get returns the active instance for the definition.
	Get(definitionID string) (model.WorkflowInstance, bool)

	// Put inserts the instance or replaces the one with the same
	// definition id. A replaced instance keeps its position in List.
	Put(instance model.WorkflowInstance)

	// Delete removes the instance and reports whether one was present.
	Delete(definitionID string) bool

	// List returns the active instances ordered by first insertion.
	List() []model.WorkflowInstance
}

// EventSink receives the audit trail of workflow transitions. Sinks are
// write-only from the engine's point of view; nothing is read back to
// rebuild active instances.
type EventSink interface {
	// Append records a single event.
	Append(ctx context.Context, event model.WorkflowEvent) error
}
