// Package application provides the tool-invocation services: the registry
// of built-in and discovered tools, the dispatcher that gates and runs each
// tool use, and the discovery service that keeps remote tools current.
package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/validation"
	"github.com/felixgeelhaar/toolgate/infrastructure/storage/memory"
)

// Registry maps tool names to definitions. Built-in tools are fixed at
// construction; discovered tools live in a separate table that Refresh
// replaces wholesale. A discovered tool never shadows a built-in one.
type Registry struct {
	static    *memory.ToolRegistry
	dynamic   *memory.ToolRegistry
	validator *validation.Validator
	audit     audit.Logger

	// mu serializes Refresh so that replace and prune apply atomically.
	mu sync.Mutex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryAudit records pruned tools to logger.
func WithRegistryAudit(logger audit.Logger) RegistryOption {
	return func(r *Registry) {
		r.audit = logger
	}
}

// NewRegistry creates a registry holding the tools of the given packs.
func NewRegistry(packs []*pack.Pack, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		static:    memory.NewToolRegistry(),
		dynamic:   memory.NewToolRegistry(),
		validator: validation.NewValidator(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := pack.Install(r.static, packs...); err != nil {
		return nil, err
	}
	for _, def := range r.static.List() {
		if err := r.validator.Register(def.Name(), def.InputSchema()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve constructs the tool a request names. When the name is unknown or
// the input does not fit the tool, Resolve returns an error Response that
// keeps the request id instead.
func (r *Registry) Resolve(use tool.Use) (*tool.Definition, tool.Tool, *tool.Response) {
	def, ok := r.Get(use.Name)
	if !ok {
		resp := tool.NewErrorResponse(use.ID, fmt.Errorf("%w: %s", tool.ErrUnknownTool, use.Name))
		return nil, nil, &resp
	}

	if err := r.validator.Validate(use.Name, use.Input); err != nil {
		resp := tool.NewErrorResponse(use.ID, err)
		return def, nil, &resp
	}

	t, err := def.New(use.Input)
	if err != nil {
		resp := tool.NewErrorResponse(use.ID, err)
		return def, nil, &resp
	}
	return def, t, nil
}

// Get returns the definition for name, built-in tools first.
func (r *Registry) Get(name string) (*tool.Definition, bool) {
	if def, ok := r.static.Get(name); ok {
		return def, true
	}
	return r.dynamic.Get(name)
}

// Has reports whether name resolves to a tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// IsBuiltin reports whether name is a built-in tool.
func (r *Registry) IsBuiltin(name string) bool {
	return r.static.Has(name)
}

// List returns every definition, built-in tools first, each group sorted
// by name.
func (r *Registry) List() []*tool.Definition {
	return append(r.static.List(), r.dynamic.List()...)
}

// Builtins returns the built-in definitions sorted by name.
func (r *Registry) Builtins() []*tool.Definition {
	return r.static.List()
}

// Discovered returns the discovered definitions sorted by name.
func (r *Registry) Discovered() []*tool.Definition {
	return r.dynamic.List()
}

// RefreshResult reports what a Refresh changed.
type RefreshResult struct {
	Added    []string
	Replaced []string
	Pruned   []string
	// Skipped lists discovered names that collided with a built-in tool or
	// carried a schema that does not compile.
	Skipped []string
}

// Refresh makes the discovered table match discovered: matching names are
// replaced, new names are added and names absent from discovered are pruned.
func (r *Registry) Refresh(ctx context.Context, discovered []*tool.Definition) RefreshResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result RefreshResult
	seen := make(map[string]bool, len(discovered))

	for _, def := range discovered {
		if def == nil {
			continue
		}
		name := def.Name()
		if r.static.Has(name) {
			logging.Warn().
				Add(logging.Component("registry")).
				Add(logging.ToolName(name)).
				Add(logging.ErrorField(tool.ErrReservedName)).
				Msg("skipping discovered tool")
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if seen[name] {
			continue
		}
		if err := r.validator.Register(name, def.InputSchema()); err != nil {
			logging.Warn().
				Add(logging.Component("registry")).
				Add(logging.ToolName(name)).
				Add(logging.ErrorField(err)).
				Msg("skipping discovered tool")
			result.Skipped = append(result.Skipped, name)
			continue
		}

		seen[name] = true
		if r.dynamic.Has(name) {
			result.Replaced = append(result.Replaced, name)
		} else {
			result.Added = append(result.Added, name)
		}
		r.dynamic.Put(def)
	}

	result.Pruned = r.dynamic.Retain(func(name string) bool { return seen[name] })
	for _, name := range result.Pruned {
		r.validator.Remove(name)
		logging.Info().
			Add(logging.Component("registry")).
			Add(logging.ToolName(name)).
			Msg("pruned discovered tool")
		if r.audit != nil {
			_ = r.audit.Log(ctx, audit.Event{
				EventType: audit.EventToolPruned,
				ToolName:  name,
				Success:   true,
			})
		}
	}

	logging.Debug().
		Add(logging.Component("registry")).
		Add(logging.Count(r.dynamic.Count())).
		Msg("discovered tools refreshed")
	return result
}
