package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
)

var (
	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected indicates the client is already connected.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrConnectionFailed indicates the connection to the server failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrServer indicates the server answered with a JSON-RPC error.
	ErrServer = errors.New("server error")
)

// ProtocolVersion is the MCP revision the client speaks.
const ProtocolVersion = "2024-11-05"

// maxMessageBytes bounds one JSON-RPC line from the server.
const maxMessageBytes = 4 << 20

// ClientConfig configures an MCP client.
type ClientConfig struct {
	// Source is the server's name in logs and tool metadata.
	Source string

	// Name is the client name announced to the server.
	Name string

	// Version is the client version announced to the server.
	Version string

	// Command is the server command to run over stdio.
	Command []string

	// Env is added to the server process environment.
	Env map[string]string

	// RequestTimeout bounds each request. Zero means the caller's context decides.
	RequestTimeout time.Duration
}

// ClientOption configures a client.
type ClientOption func(*ClientConfig)

// WithSourceName sets the name the client reports as a tool source.
func WithSourceName(name string) ClientOption {
	return func(c *ClientConfig) {
		c.Source = name
	}
}

// WithClientName sets the client name.
func WithClientName(name string) ClientOption {
	return func(c *ClientConfig) {
		c.Name = name
	}
}

// WithClientVersion sets the client version.
func WithClientVersion(version string) ClientOption {
	return func(c *ClientConfig) {
		c.Version = version
	}
}

// WithServerCommand sets the server command.
func WithServerCommand(cmd ...string) ClientOption {
	return func(c *ClientConfig) {
		c.Command = cmd
	}
}

// WithServerEnv adds environment variables for the server process.
func WithServerEnv(env map[string]string) ClientOption {
	return func(c *ClientConfig) {
		c.Env = env
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.RequestTimeout = d
	}
}

// Client consumes tools from an MCP server over stdio JSON-RPC.
// It connects lazily on first use and implements tool.RemoteSource.
type Client struct {
	config     ClientConfig
	serverInfo *ServerIdentity
	connected  bool
	mu         sync.RWMutex

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	encMu  sync.Mutex
	enc    *json.Encoder

	reqID     atomic.Int64
	responses map[int64]chan *rpcResponse
	respMu    sync.Mutex
}

var _ tool.RemoteSource = (*Client)(nil)

// ServerIdentity names a connected MCP server.
type ServerIdentity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ServerIdentity `json:"clientInfo"`
}

type initResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerIdentity `json:"serverInfo"`
}

type listToolsResult struct {
	Tools      []tool.RemoteDefinition `json:"tools"`
	NextCursor string                  `json:"nextCursor,omitempty"`
}

type listToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewClient creates a new MCP client.
func NewClient(opts ...ClientOption) *Client {
	cfg := ClientConfig{
		Name:    "toolgate",
		Version: "1.0.0",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Source == "" && len(cfg.Command) > 0 {
		cfg.Source = cfg.Command[0]
	}

	return &Client{
		config:    cfg,
		responses: make(map[int64]chan *rpcResponse),
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return c.config.Source
}

// Connect starts the server process and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}
	if len(c.config.Command) == 0 {
		return fmt.Errorf("%w: no command specified", ErrConnectionFailed)
	}

	// The server outlives the connecting request, so it is not tied to ctx.
	cmd := exec.Command(c.config.Command[0], c.config.Command[1:]...) // #nosec G204 -- command comes from the operator's config
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(c.config.Env))
	for k := range c.config.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+c.config.Env[k])
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %v", ErrConnectionFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("%w: stdout pipe: %v", ErrConnectionFailed, err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return fmt.Errorf("%w: start %s: %v", ErrConnectionFailed, c.config.Command[0], err)
	}

	c.cmd = cmd
	return c.attachLocked(ctx, stdout, stdin)
}

// Attach runs the handshake over an already-open transport.
func (c *Client) Attach(ctx context.Context, r io.ReadCloser, w io.WriteCloser) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}
	return c.attachLocked(ctx, r, w)
}

func (c *Client) attachLocked(ctx context.Context, r io.ReadCloser, w io.WriteCloser) error {
	c.stdout = r
	c.stdin = w
	c.encMu.Lock()
	c.enc = json.NewEncoder(w)
	c.encMu.Unlock()

	go c.readResponses(r)

	if err := c.initialize(ctx); err != nil {
		c.closeLocked()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.connected = true
	return nil
}

func (c *Client) readResponses(r io.ReadCloser) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}

		var reqID int64
		switch id := resp.ID.(type) {
		case float64:
			reqID = int64(id)
		default:
			// Notifications and server requests carry no numeric id we issued.
			continue
		}

		c.respMu.Lock()
		if ch, exists := c.responses[reqID]; exists {
			ch <- &resp
			delete(c.responses, reqID)
		}
		c.respMu.Unlock()
	}

	// The server went away; fail everything still waiting.
	c.respMu.Lock()
	for id, ch := range c.responses {
		close(ch)
		delete(c.responses, id)
	}
	c.respMu.Unlock()

	c.disconnect(r)
}

// disconnect tears down the connection whose reader was r so the next
// call reconnects. A reader from an earlier connection is ignored.
func (c *Client) disconnect(r io.ReadCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stdout != r {
		return
	}
	wasConnected := c.connected
	c.closeLocked()
	if wasConnected {
		logging.Warn().
			Add(logging.Component("mcp")).
			Add(logging.Str("source", c.config.Source)).
			Msg("mcp server disconnected")
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := initParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: ServerIdentity{
			Name:    c.config.Name,
			Version: c.config.Version,
		},
	}

	var result initResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	c.serverInfo = &result.ServerInfo

	return c.send(rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
}

func (c *Client) send(req rpcRequest) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	if c.enc == nil {
		return ErrNotConnected
	}
	return c.enc.Encode(req)
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	id := c.reqID.Add(1)
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	respCh := make(chan *rpcResponse, 1)
	c.respMu.Lock()
	c.responses[id] = respCh
	c.respMu.Unlock()

	if err := c.send(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw}); err != nil {
		c.forget(id)
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return ErrNotConnected
		}
		if resp.Error != nil {
			return fmt.Errorf("%w: %s: %s", ErrServer, method, resp.Error.Message)
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("parse %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.respMu.Lock()
	delete(c.responses, id)
	c.respMu.Unlock()
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if connected {
		return nil
	}
	if len(c.config.Command) == 0 {
		return ErrNotConnected
	}
	if err := c.Connect(ctx); err != nil && !errors.Is(err, ErrAlreadyConnected) {
		return err
	}
	return nil
}

// Close closes the connection and stops the server process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	c.connected = false

	if c.stdin != nil {
		_ = c.stdin.Close()
		c.stdin = nil
	}
	if c.stdout != nil {
		_ = c.stdout.Close()
		c.stdout = nil
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
		c.cmd = nil
	}
}

// ListTools returns every tool the server offers, following pagination.
func (c *Client) ListTools(ctx context.Context) ([]tool.RemoteDefinition, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var all []tool.RemoteDefinition
	cursor := ""
	for {
		var result listToolsResult
		if err := c.call(ctx, "tools/list", listToolsParams{Cursor: cursor}, &result); err != nil {
			return nil, err
		}
		all = append(all, result.Tools...)
		if result.NextCursor == "" || result.NextCursor == cursor {
			return all, nil
		}
		cursor = result.NextCursor
	}
}

// CallTool calls a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (*tool.RemoteResult, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var result tool.RemoteResult
	if err := c.call(ctx, "tools/call", callToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Connected reports whether the handshake succeeded and the server is
// still reachable.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() *ServerIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}
