// Package mcp provides Model Context Protocol integration. The client
// discovers and calls tools on external servers; the server exposes the
// gated built-in tools through github.com/felixgeelhaar/mcp-go.
package mcp

import (
	mcpgo "github.com/felixgeelhaar/mcp-go"
)

// Re-exported middleware constructors from mcp-go.
var (
	Recover   = mcpgo.Recover
	RequestID = mcpgo.RequestID
)
