package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	mcpserver "github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// Handler runs one tool use through the gated dispatch path.
type Handler interface {
	Handle(ctx context.Context, use tool.Use) tool.Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, use tool.Use) tool.Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, use tool.Use) tool.Response {
	return f(ctx, use)
}

// Server exposes gated tools to MCP clients.
type Server struct {
	srv     *mcpgo.Server
	handler Handler
	info    mcpgo.ServerInfo

	mu    sync.Mutex
	names []string
	known map[string]bool
}

// ServerConfig configures an MCP server.
type ServerConfig struct {
	// Name is the server name.
	Name string

	// Version is the server version.
	Version string

	// Description is an optional server description.
	Description string

	// Instructions provides usage instructions for clients.
	Instructions string

	// Tools are the definitions to expose.
	Tools []*tool.Definition

	// Handler dispatches calls. Every call goes through it, so the
	// acceptance gate applies to MCP clients as it does to the agent.
	Handler Handler
}

// NewServer creates a new MCP server.
func NewServer(cfg ServerConfig) *Server {
	info := mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: cfg.Description,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	s := &Server{
		srv:     mcpgo.NewServer(info, opts...),
		handler: cfg.Handler,
		info:    info,
		known:   make(map[string]bool),
	}
	s.Add(cfg.Tools...)
	return s
}

// Add exposes further definitions. Names already exposed are skipped; a
// tool that later leaves the registry stays listed and its calls fail as
// unknown.
func (s *Server) Add(defs ...*tool.Definition) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, def := range defs {
		if s.known[def.Name()] {
			continue
		}
		s.register(def)
		added++
	}
	return added
}

func (s *Server) register(def *tool.Definition) {
	name := def.Name()
	s.known[name] = true
	s.srv.Tool(name).
		Description(def.Description()).
		Handler(func(ctx context.Context, input json.RawMessage) (string, error) {
			return s.call(ctx, name, input)
		})
	s.names = append(s.names, name)
}

func (s *Server) call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	if s.handler == nil {
		return "", errors.New("no handler configured")
	}
	resp := s.handler.Handle(ctx, tool.Use{
		ID:    uuid.NewString(),
		Name:  name,
		Input: input,
	})
	if resp.IsError() {
		return "", errors.New(resp.Text())
	}
	return resp.Text(), nil
}

// Names returns the exposed tool names in registration order.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Server returns the underlying mcp-go server.
func (s *Server) Server() *mcpgo.Server {
	return s.srv
}

// Use adds middleware to the server.
func (s *Server) Use(middlewares ...mcpserver.Middleware) {
	s.srv.Use(middlewares...)
}

// ServeStdio runs the server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}
