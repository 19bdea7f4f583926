// Package validation compiles tool input schemas and validates inputs against them.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// ErrInvalidSchema indicates a schema document could not be compiled.
var ErrInvalidSchema = errors.New("invalid input schema")

// Schema is a compiled JSON Schema.
type Schema struct {
	resolved *jsonschema.Resolved
}

// Compile parses and resolves a schema document. An empty document
// compiles to a schema that accepts any object.
func Compile(schema tool.Schema) (*Schema, error) {
	raw := schema.Raw()
	if schema.IsEmpty() {
		raw = json.RawMessage(`{}`)
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return &Schema{resolved: resolved}, nil
}

// Validate checks input against the schema. Failures wrap tool.ErrValidation.
func (s *Schema) Validate(input json.RawMessage) error {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	var instance any
	if err := json.Unmarshal(input, &instance); err != nil {
		return fmt.Errorf("%w: invalid JSON input: %v", tool.ErrValidation, err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", tool.ErrValidation, err)
	}
	return nil
}

// Validator holds compiled schemas keyed by tool name.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*Schema)}
}

// Register compiles and stores the schema for a tool, replacing any
// previous one. An invalid schema leaves the previous entry untouched.
func (v *Validator) Register(name string, schema tool.Schema) error {
	compiled, err := Compile(schema)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[name] = compiled
	return nil
}

// Validate checks input for the named tool. Tools without a registered
// schema pass.
func (v *Validator) Validate(name string, input json.RawMessage) error {
	v.mu.RLock()
	s, ok := v.schemas[name]
	v.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := s.Validate(input); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Has reports whether a schema is registered for name.
func (v *Validator) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[name]
	return ok
}

// Remove drops the schema for name.
func (v *Validator) Remove(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.schemas, name)
}

// Names returns the tools with a registered schema, sorted.
func (v *Validator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
