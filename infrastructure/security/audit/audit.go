// Package audit provides security audit logging for tool invocations.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// Event represents a security audit event.
type Event struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   EventType      `json:"event_type"`
	ToolUseID   string         `json:"tool_use_id,omitempty"`
	TriggerID   string         `json:"trigger_id,omitempty"`
	ToolName    string         `json:"tool_name,omitempty"`
	State       string         `json:"state,omitempty"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Warning     string         `json:"warning,omitempty"`
	Duration    time.Duration  `json:"duration_ns,omitempty"`
	InputHash   string         `json:"input_hash,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// EventType categorizes audit events.
type EventType string

const (
	EventToolInvocation     EventType = "tool_invocation"
	EventAcceptanceRequired EventType = "acceptance_required"
	EventApprovalGranted    EventType = "approval_granted"
	EventApprovalDenied     EventType = "approval_denied"
	EventValidationFailure  EventType = "validation_failure"
	EventUnknownTool        EventType = "unknown_tool"
	EventCancellation       EventType = "cancellation"
	EventDiscoveryFailure   EventType = "discovery_failure"
	EventToolPruned         EventType = "tool_pruned"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves events matching the filter.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// Filter specifies criteria for querying events.
type Filter struct {
	StartTime  time.Time
	EndTime    time.Time
	EventTypes []EventType
	ToolUseID  string
	ToolName   string
	Success    *bool
	Limit      int
}

// HashInput returns a short stable digest of a tool input, so audit
// records can correlate invocations without storing their payloads.
func HashInput(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:8])
}

// MemoryLogger implements Logger using in-memory storage.
type MemoryLogger struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// MemoryLoggerOption configures the memory logger.
type MemoryLoggerOption func(*MemoryLogger)

// WithMaxEvents sets the maximum number of events to retain.
func WithMaxEvents(max int) MemoryLoggerOption {
	return func(l *MemoryLogger) {
		l.maxLen = max
	}
}

// NewMemoryLogger creates a new in-memory audit logger.
func NewMemoryLogger(opts ...MemoryLoggerOption) *MemoryLogger {
	l := &MemoryLogger{
		events: make([]Event, 0),
		maxLen: 10000,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records an event.
func (l *MemoryLogger) Log(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.events = append(l.events, event)
	if l.maxLen > 0 && len(l.events) > l.maxLen {
		l.events = l.events[len(l.events)-l.maxLen:]
	}

	return nil
}

// Query retrieves events matching the filter.
func (l *MemoryLogger) Query(_ context.Context, filter Filter) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	for _, event := range l.events {
		if !Matches(event, filter) {
			continue
		}
		result = append(result, event)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Close releases resources.
func (l *MemoryLogger) Close() error {
	return nil
}

// Events returns all events.
func (l *MemoryLogger) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]Event, len(l.events))
	copy(result, l.events)
	return result
}

// Matches reports whether an event satisfies the filter.
func Matches(event Event, filter Filter) bool {
	if !filter.StartTime.IsZero() && event.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && event.Timestamp.After(filter.EndTime) {
		return false
	}
	if len(filter.EventTypes) > 0 {
		found := false
		for _, t := range filter.EventTypes {
			if event.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ToolUseID != "" && event.ToolUseID != filter.ToolUseID {
		return false
	}
	if filter.ToolName != "" && event.ToolName != filter.ToolName {
		return false
	}
	if filter.Success != nil && event.Success != *filter.Success {
		return false
	}
	return true
}

// JSONLogger writes events as JSON lines to an io.Writer.
type JSONLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	encoder *json.Encoder
}

// NewJSONLogger creates a new JSON audit logger.
func NewJSONLogger(writer io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  writer,
		encoder: json.NewEncoder(writer),
	}
}

// Log records an event as JSON.
func (l *JSONLogger) Log(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// Query is not supported by JSONLogger.
func (l *JSONLogger) Query(context.Context, Filter) ([]Event, error) {
	return nil, nil
}

// Close releases resources.
func (l *JSONLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// MultiLogger logs to multiple loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to multiple loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log records an event to all loggers.
func (l *MultiLogger) Log(ctx context.Context, event Event) error {
	var firstErr error
	for _, logger := range l.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Query queries the first logger that supports it.
func (l *MultiLogger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	for _, logger := range l.loggers {
		events, err := logger.Query(ctx, filter)
		if err == nil && events != nil {
			return events, nil
		}
	}
	return nil, nil
}

// Close closes all loggers.
func (l *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range l.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Middleware records one tool_invocation event per invocation.
func Middleware(logger Logger) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Output, error) {
			start := time.Now()

			out, err := next(ctx, execCtx)

			event := Event{
				Timestamp: start,
				EventType: EventToolInvocation,
				ToolUseID: execCtx.Use.ID,
				TriggerID: execCtx.TriggerID,
				ToolName:  execCtx.Use.Name,
				Duration:  time.Since(start),
				Success:   err == nil,
				Warning:   execCtx.Verdict.Warning,
				InputHash: HashInput(execCtx.Use.Input),
			}
			if execCtx.Definition != nil {
				a := execCtx.Definition.Annotations()
				event.Annotations = map[string]any{
					"read_only":   a.ReadOnly,
					"destructive": a.Destructive,
					"remote":      a.Remote,
				}
			}
			if err != nil {
				event.Error = err.Error()
			}

			_ = logger.Log(ctx, event)

			return out, err
		}
	}
}
