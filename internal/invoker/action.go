// Package invoker dispatches workflow action steps to handlers registered by
// name at startup.
package invoker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pitabwire/jiramcp/model"
)

// ActionHandler runs the operation of an action step against a snapshot of
// the workflow's accumulated data. Handlers are not assumed to be
// idempotent; the engine may call them again after a failed attempt.
type ActionHandler interface {
	Execute(ctx context.Context, data model.Data) (model.ResultValue, error)
}

// ActionFunc adapts a function to the ActionHandler interface.
type ActionFunc func(ctx context.Context, data model.Data) (model.ResultValue, error)

// Execute calls f.
func (f ActionFunc) Execute(ctx context.Context, data model.Data) (model.ResultValue, error) {
	return f(ctx, data)
}

// ActionRegistry stores named action handlers. It is safe for concurrent use
// after initial registration.
type ActionRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// NewActionRegistry creates a new empty handler registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		handlers: make(map[string]ActionHandler),
	}
}

// Register adds a handler under name. Panics if a handler with the same name
// is already registered, since this indicates a wiring mistake at startup.
func (r *ActionRegistry) Register(name string, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("invoker: action handler %q already registered", name))
	}
	r.handlers[name] = handler
}

// Get returns the handler registered under the given name, or false if not found.
func (r *ActionRegistry) Get(name string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Has reports whether a handler is registered under name.
func (r *ActionRegistry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered handler names, sorted alphabetically.
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up the handler by name and runs it.
func (r *ActionRegistry) Execute(ctx context.Context, name string, data model.Data) (model.ResultValue, error) {
	handler, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("action handler %q not found", name)
	}
	return handler.Execute(ctx, data)
}
