package badger_test

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/storage/badger"
)

func newTestStore(t *testing.T, opts ...badger.Option) *badger.AuditStore {
	t.Helper()

	s, err := badger.NewAuditStore(badger.DefaultConfig(), append([]badger.Option{badger.WithInMemory()}, opts...)...)
	if err != nil {
		t.Fatalf("NewAuditStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAuditStore_LogAndQuery(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	events := []audit.Event{
		{Timestamp: base.Add(2 * time.Second), EventType: audit.EventToolInvocation, ToolUseID: "u3", ToolName: "execute_bash", Success: true},
		{Timestamp: base, EventType: audit.EventToolInvocation, ToolUseID: "u1", ToolName: "fs_read", Success: true},
		{Timestamp: base.Add(time.Second), EventType: audit.EventApprovalDenied, ToolUseID: "u2", ToolName: "execute_bash"},
	}
	for _, e := range events {
		if err := s.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	all, err := s.Query(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].ToolUseID != "u1" || all[1].ToolUseID != "u2" || all[2].ToolUseID != "u3" {
		t.Errorf("expected timestamp order, got %s %s %s", all[0].ToolUseID, all[1].ToolUseID, all[2].ToolUseID)
	}

	failed := false
	tests := []struct {
		name   string
		filter audit.Filter
		want   int
	}{
		{"by type", audit.Filter{EventTypes: []audit.EventType{audit.EventToolInvocation}}, 2},
		{"by tool", audit.Filter{ToolName: "execute_bash"}, 2},
		{"by use id", audit.Filter{ToolUseID: "u2"}, 1},
		{"failures", audit.Filter{Success: &failed}, 1},
		{"since", audit.Filter{StartTime: base.Add(500 * time.Millisecond)}, 2},
		{"until", audit.Filter{EndTime: base.Add(1500 * time.Millisecond)}, 2},
		{"limit", audit.Filter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d events, got %d", tt.want, len(got))
			}
		})
	}
}

func TestAuditStore_KeyPrefixIsolation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, badger.WithKeyPrefix("a:"))
	ctx := context.Background()

	if err := s.Log(ctx, audit.Event{EventType: audit.EventToolPruned, ToolName: "remote_tool"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	got, err := s.Query(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].Timestamp.IsZero() {
		t.Errorf("expected one timestamped event, got %+v", got)
	}
}

func TestAuditStore_CancelledContext(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Log(ctx, audit.Event{EventType: audit.EventToolInvocation}); err == nil {
		t.Error("expected error for cancelled context")
	}
	if _, err := s.Query(ctx, audit.Filter{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestAuditStore_CloseTwice(t *testing.T) {
	t.Parallel()

	s, err := badger.NewAuditStore(badger.DefaultConfig(), badger.WithInMemory())
	if err != nil {
		t.Fatalf("NewAuditStore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}
