// Package pack provides types for collections of built-in tools.
package pack

import (
	"fmt"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// Pack is a collection of related tool definitions.
type Pack struct {
	// Name is the unique identifier for the pack.
	Name string

	// Description explains what the pack provides.
	Description string

	// Version is the semantic version of the pack.
	Version string

	// Tools are the definitions contributed by the pack.
	Tools []*tool.Definition

	// Metadata holds additional pack information.
	Metadata map[string]string
}

// ToolNames returns the names of all tools in the pack.
func (p *Pack) ToolNames() []string {
	names := make([]string, len(p.Tools))
	for i, t := range p.Tools {
		names[i] = t.Name()
	}
	return names
}

// GetTool returns a definition by name from the pack.
func (p *Pack) GetTool(name string) (*tool.Definition, bool) {
	for _, t := range p.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Install registers every tool of the pack. It stops at the first failure.
func Install(reg tool.Registry, packs ...*Pack) error {
	for _, p := range packs {
		if p == nil {
			return ErrInvalidPack
		}
		for _, def := range p.Tools {
			if def == nil {
				return fmt.Errorf("%w: %s has a nil tool", ErrInvalidPack, p.Name)
			}
			if err := reg.Register(def); err != nil {
				return fmt.Errorf("install %s: %w", p.Name, err)
			}
		}
	}
	return nil
}

// Builder provides a fluent API for constructing packs.
type Builder struct {
	pack *Pack
}

// NewBuilder creates a new pack builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		pack: &Pack{
			Name:     name,
			Metadata: make(map[string]string),
		},
	}
}

// WithDescription sets the pack description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.pack.Description = desc
	return b
}

// WithVersion sets the pack version.
func (b *Builder) WithVersion(version string) *Builder {
	b.pack.Version = version
	return b
}

// AddTools adds definitions to the pack.
func (b *Builder) AddTools(defs ...*tool.Definition) *Builder {
	b.pack.Tools = append(b.pack.Tools, defs...)
	return b
}

// WithMetadata adds metadata to the pack.
func (b *Builder) WithMetadata(key, value string) *Builder {
	b.pack.Metadata[key] = value
	return b
}

// Build returns the constructed pack.
func (b *Builder) Build() *Pack {
	return b.pack
}
