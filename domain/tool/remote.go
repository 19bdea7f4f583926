package tool

import (
	"context"
	"encoding/json"
)

// RemoteDefinition is a tool advertised by a remote discovery source.
type RemoteDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// RemoteResult is the outcome of a remote tool call.
type RemoteResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// RemoteSource lists and calls tools served by one remote server.
type RemoteSource interface {
	// Name identifies the source in logs and tool metadata.
	Name() string

	// ListTools returns the tools the source currently offers.
	ListTools(ctx context.Context) ([]RemoteDefinition, error)

	// CallTool invokes a tool on the source.
	CallTool(ctx context.Context, name string, args json.RawMessage) (*RemoteResult, error)
}
