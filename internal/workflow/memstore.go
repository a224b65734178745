package workflow

import (
	"context"
	"slices"
	"sync"

	"github.com/pitabwire/jiramcp/model"
)

// MemoryInstanceStore is the in-memory InstanceStore. Its contents are lost
// when the process exits.
type MemoryInstanceStore struct {
	mu        sync.RWMutex
	instances map[string]model.WorkflowInstance // key: definition ID
	order     []string
}

// NewMemoryInstanceStore creates an empty instance store.
func NewMemoryInstanceStore() *MemoryInstanceStore {
	return &MemoryInstanceStore{
		instances: make(map[string]model.WorkflowInstance),
	}
}

// Get returns a copy of the instance for the definition.
func (s *MemoryInstanceStore) Get(definitionID string) (model.WorkflowInstance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[definitionID]
	if !ok {
		return model.WorkflowInstance{}, false
	}
	return inst.Clone(), true
}

// Put stores a copy of the instance.
func (s *MemoryInstanceStore) Put(inst model.WorkflowInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[inst.DefinitionID]; !exists {
		s.order = append(s.order, inst.DefinitionID)
	}
	s.instances[inst.DefinitionID] = inst.Clone()
}

// Delete removes the instance for the definition.
func (s *MemoryInstanceStore) Delete(definitionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[definitionID]; !exists {
		return false
	}
	delete(s.instances, definitionID)
	if i := slices.Index(s.order, definitionID); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// List returns copies of all instances in insertion order.
func (s *MemoryInstanceStore) List() []model.WorkflowInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WorkflowInstance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.instances[id].Clone())
	}
	return out
}

// Len returns the number of active instances. For testing.
func (s *MemoryInstanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// MemoryEventSink keeps workflow events in memory.
type MemoryEventSink struct {
	mu     sync.RWMutex
	events []model.WorkflowEvent
}

// NewMemoryEventSink creates an empty in-memory event sink.
func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{}
}

// Append records the event.
func (s *MemoryEventSink) Append(_ context.Context, event model.WorkflowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns the recorded events for a definition in append order. An
// empty definitionID returns every event.
func (s *MemoryEventSink) Events(definitionID string) []model.WorkflowEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.WorkflowEvent
	for _, ev := range s.events {
		if definitionID == "" || ev.DefinitionID == definitionID {
			out = append(out, ev)
		}
	}
	return out
}

// HealthCheck implements observability.HealthChecker.
func (s *MemoryEventSink) HealthCheck(context.Context) error {
	return nil
}

// nopEventSink discards events.
type nopEventSink struct{}

func (nopEventSink) Append(context.Context, model.WorkflowEvent) error { return nil }
