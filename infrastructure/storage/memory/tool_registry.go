// Package memory provides in-memory storage implementations.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// ToolRegistry is an in-memory implementation of tool.Registry.
type ToolRegistry struct {
	tools map[string]*tool.Definition
	mu    sync.RWMutex
}

// NewToolRegistry creates a new in-memory tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*tool.Definition),
	}
}

// Register adds a definition to the registry.
func (r *ToolRegistry) Register(def *tool.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name()]; exists {
		return fmt.Errorf("%w: %s", tool.ErrToolExists, def.Name())
	}

	r.tools[def.Name()] = def
	return nil
}

// Put adds or replaces a definition.
func (r *ToolRegistry) Put(def *tool.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name()] = def
}

// Get retrieves a definition by name.
func (r *ToolRegistry) Get(name string) (*tool.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	return def, ok
}

// List returns all registered definitions sorted by name.
func (r *ToolRegistry) List() []*tool.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*tool.Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name() < defs[j].Name() })
	return defs
}

// Names returns all registered names sorted.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a name is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Unregister removes a definition from the registry.
func (r *ToolRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %s", tool.ErrUnknownTool, name)
	}

	delete(r.tools, name)
	return nil
}

// Retain removes every definition whose name keep rejects and returns the
// removed names, sorted.
func (r *ToolRegistry) Retain(keep func(name string) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for name := range r.tools {
		if !keep(name) {
			delete(r.tools, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}

// Count returns the number of registered definitions.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
