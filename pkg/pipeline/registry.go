package pipeline

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry owns the mapping from tool name to tool definition. Lookups are
// safe under concurrent registration; snapshots preserve registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register inserts a tool. Registering a name that already exists fails with
// a DuplicateToolError; the existing definition is kept.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Schema == nil {
		return fmt.Errorf("tool %s has no schema", tool.Name)
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return &DuplicateToolError{Tool: tool.Name}
	}

	r.tools[tool.Name] = &tool
	r.order = append(r.order, tool.Name)

	log.Debug().Str("tool", tool.Name).Msg("Tool registered")

	return nil
}

// Get returns the tool definition for a name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// All returns a snapshot of every registered tool in registration order.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Remove deletes a tool and reports whether it existed. Removing an
// unregistered tool is a no-op.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return false
	}

	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.Debug().Str("tool", name).Msg("Tool removed")

	return true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
