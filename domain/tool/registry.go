package tool

// Registry defines the interface for tool definition storage and lookup.
// Implementations are in infrastructure.
type Registry interface {
	// Register adds a definition, failing if the name is taken.
	Register(def *Definition) error

	// Put adds or replaces a definition.
	Put(def *Definition)

	// Get retrieves a definition by name.
	Get(name string) (*Definition, bool)

	// List returns all definitions sorted by name.
	List() []*Definition

	// Names returns all registered names sorted.
	Names() []string

	// Has checks if a name is registered.
	Has(name string) bool

	// Unregister removes a definition.
	Unregister(name string) error
}
