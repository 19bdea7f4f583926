package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/toolgate/domain/command"
)

// DefaultMaxResponseSize is the response ceiling applied when a definition
// does not declare its own.
const DefaultMaxResponseSize = 800_000

// Tool is one invocation of a capability, constructed from a single
// tool-use request. The dispatcher always calls Validate, then
// RequiresAcceptance, then Invoke.
type Tool interface {
	// Name returns the stable string identifier for the tool.
	Name() string

	// Validate checks parameters and referenced paths before any side effect.
	Validate(ctx context.Context) error

	// RequiresAcceptance reports whether a human must approve the invocation.
	RequiresAcceptance(ctx context.Context) command.Validation

	// QueueDescription writes a preview of the pending effect and ends the sink.
	QueueDescription(sink Sink) error

	// Invoke performs the effect, optionally streaming progress to sink.
	Invoke(ctx context.Context, sink Sink) (Output, error)
}

// Constructor builds a Tool from the raw input of a tool-use request.
type Constructor func(input json.RawMessage) (Tool, error)

// Definition is a registration entry: everything the registry and the
// agent need to know about a tool before it is constructed.
type Definition struct {
	name            string
	description     string
	inputSchema     Schema
	annotations     Annotations
	maxResponseSize int
	constructor     Constructor
}

// Name returns the tool name.
func (d *Definition) Name() string {
	return d.name
}

// Description returns the tool description.
func (d *Definition) Description() string {
	return d.description
}

// InputSchema returns the input schema.
func (d *Definition) InputSchema() Schema {
	return d.inputSchema
}

// Annotations returns the tool annotations.
func (d *Definition) Annotations() Annotations {
	return d.annotations
}

// MaxResponseSize returns the output ceiling enforced at the registry boundary.
func (d *Definition) MaxResponseSize() int {
	if d.maxResponseSize <= 0 {
		return DefaultMaxResponseSize
	}
	return d.maxResponseSize
}

// New constructs a tool instance for the given input. Constructor
// failures are reported as validation errors.
func (d *Definition) New(input json.RawMessage) (Tool, error) {
	if d.constructor == nil {
		return nil, ErrNoConstructor
	}
	t, err := d.constructor(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidation, d.name, err)
	}
	return t, nil
}

// Builder provides a fluent API for constructing tool definitions.
type Builder struct {
	def *Definition
	err error
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: &Definition{
			name:        name,
			inputSchema: EmptySchema(),
			annotations: DefaultAnnotations(),
		},
	}
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	if b.err != nil {
		return b
	}
	b.def.description = desc
	return b
}

// WithInputSchema sets the input schema.
func (b *Builder) WithInputSchema(schema Schema) *Builder {
	if b.err != nil {
		return b
	}
	b.def.inputSchema = schema
	return b
}

// WithAnnotations sets the tool annotations.
func (b *Builder) WithAnnotations(annotations Annotations) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations = annotations
	return b
}

// ReadOnly marks the tool as read-only.
func (b *Builder) ReadOnly() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.ReadOnly = true
	b.def.annotations.RiskLevel = RiskNone
	return b
}

// Destructive marks the tool as destructive.
func (b *Builder) Destructive() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Destructive = true
	if b.def.annotations.RiskLevel < RiskHigh {
		b.def.annotations.RiskLevel = RiskHigh
	}
	return b
}

// Remote marks the tool as discovered from a remote source.
func (b *Builder) Remote() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Remote = true
	return b
}

// WithRiskLevel sets the risk level.
func (b *Builder) WithRiskLevel(level RiskLevel) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.RiskLevel = level
	return b
}

// RequiresApproval marks the tool as always requiring approval.
func (b *Builder) RequiresApproval() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.RequiresApproval = true
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Tags = append(b.def.annotations.Tags, tags...)
	return b
}

// WithMaxResponseSize sets the output ceiling for this tool.
func (b *Builder) WithMaxResponseSize(n int) *Builder {
	if b.err != nil {
		return b
	}
	b.def.maxResponseSize = n
	return b
}

// WithConstructor sets the function that builds tool instances.
func (b *Builder) WithConstructor(c Constructor) *Builder {
	if b.err != nil {
		return b
	}
	b.def.constructor = c
	return b
}

// Build constructs the tool definition.
func (b *Builder) Build() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.def.name == "" {
		return nil, ErrEmptyName
	}
	if b.def.constructor == nil {
		return nil, ErrNoConstructor
	}
	return b.def, nil
}

// MustBuild constructs the tool definition or panics on error.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
