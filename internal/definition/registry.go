package definition

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pitabwire/jiramcp/model"
)

// snapshot is an immutable, ordered collection of workflow definitions.
type snapshot struct {
	order    []string
	byID     map[string]model.WorkflowDefinition
	checksum string
}

func newSnapshot(order []string, byID map[string]model.WorkflowDefinition) *snapshot {
	parts := make([]string, 0, len(order))
	for _, id := range order {
		parts = append(parts, byID[id].Checksum)
	}
	slices.Sort(parts)
	return &snapshot{
		order:    order,
		byID:     byID,
		checksum: fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(parts, ":")))),
	}
}

// Registry is a read-optimized, thread-safe catalogue of workflow
// definitions. Reads go through an atomic pointer to an immutable snapshot;
// writers are serialized and publish a new snapshot.
//
// Iteration order is registration order. Re-registering an id replaces the
// definition in place without moving it.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry holding the given definitions in order.
func NewRegistry(defs ...model.WorkflowDefinition) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Register inserts def or replaces the definition with the same id.
func (r *Registry) Register(def model.WorkflowDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current()
	byID := make(map[string]model.WorkflowDefinition, len(cur.byID)+1)
	for k, v := range cur.byID {
		byID[k] = v
	}
	order := cur.order
	if _, exists := byID[def.ID]; !exists {
		order = append(slices.Clip(order), def.ID)
	}
	byID[def.ID] = def

	r.snap.Store(newSnapshot(order, byID))
}

// Deregister removes the definition with the given id. It reports whether a
// definition was removed.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current()
	if _, exists := cur.byID[id]; !exists {
		return false
	}
	byID := make(map[string]model.WorkflowDefinition, len(cur.byID))
	order := make([]string, 0, len(cur.order))
	for _, k := range cur.order {
		if k == id {
			continue
		}
		order = append(order, k)
		byID[k] = cur.byID[k]
	}
	r.snap.Store(newSnapshot(order, byID))
	return true
}

// Replace atomically swaps the registry contents for defs. Later entries
// with a duplicate id replace earlier ones in place.
func (r *Registry) Replace(defs []model.WorkflowDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[string]model.WorkflowDefinition, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		if _, exists := byID[def.ID]; !exists {
			order = append(order, def.ID)
		}
		byID[def.ID] = def
	}
	r.snap.Store(newSnapshot(order, byID))
}

func (r *Registry) current() *snapshot {
	if s := r.snap.Load(); s != nil {
		return s
	}
	return &snapshot{byID: map[string]model.WorkflowDefinition{}}
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (model.WorkflowDefinition, bool) {
	d, ok := r.current().byID[id]
	return d, ok
}

// FindByTrigger returns the earliest-registered definition whose trigger
// equals toolName.
func (r *Registry) FindByTrigger(toolName string) (model.WorkflowDefinition, bool) {
	s := r.current()
	for _, id := range s.order {
		if d := s.byID[id]; d.Trigger == toolName {
			return d, true
		}
	}
	return model.WorkflowDefinition{}, false
}

// All returns all definitions in registration order.
func (r *Registry) All() []model.WorkflowDefinition {
	s := r.current()
	defs := make([]model.WorkflowDefinition, 0, len(s.order))
	for _, id := range s.order {
		defs = append(defs, s.byID[id])
	}
	return defs
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.current().order)
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
