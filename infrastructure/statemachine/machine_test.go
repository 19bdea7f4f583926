package statemachine

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/toolgate/domain/invocation"
)

func newLifecycle(t *testing.T) *Lifecycle {
	t.Helper()

	machine, err := NewLifecycleMachine()
	if err != nil {
		t.Fatalf("NewLifecycleMachine() error = %v", err)
	}
	return NewLifecycle(machine, NewContext("fs_read", "use-1"))
}

func TestNewContext(t *testing.T) {
	t.Parallel()

	ctx := NewContext("execute_bash", "use-1")
	if ctx.ToolName != "execute_bash" {
		t.Errorf("ToolName = %s, want execute_bash", ctx.ToolName)
	}
	if ctx.ToolUseID != "use-1" {
		t.Errorf("ToolUseID = %s, want use-1", ctx.ToolUseID)
	}
	if ctx.State != invocation.StateCreated {
		t.Errorf("State = %s, want created", ctx.State)
	}
}

func TestEventForTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    invocation.State
		expected string
	}{
		{invocation.StateValidated, "VALIDATE"},
		{invocation.StateAwaitingAcceptance, "AWAIT"},
		{invocation.StateInvoking, "INVOKE"},
		{invocation.StateCompleted, "COMPLETE"},
		{invocation.StateFailed, "FAIL"},
		{invocation.StateCancelled, "CANCEL"},
		{invocation.State("custom"), "custom"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()
			if got := EventForTransition(tt.state); string(got) != tt.expected {
				t.Errorf("EventForTransition(%s) = %s, want %s", tt.state, got, tt.expected)
			}
		})
	}
}

func TestStateFromEventType_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range invocation.AllStates() {
		if s == invocation.StateCreated {
			continue
		}
		if got := stateFromEventType(EventForTransition(s)); got != s {
			t.Errorf("stateFromEventType(EventForTransition(%s)) = %s", s, got)
		}
	}
}

func TestLifecycle_StartsCreated(t *testing.T) {
	t.Parallel()

	l := newLifecycle(t)
	if l.State() != invocation.StateCreated {
		t.Errorf("State() = %s, want created", l.State())
	}
	if l.IsTerminal() {
		t.Error("IsTerminal() = true, want false")
	}
}

func TestLifecycle_Paths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path []invocation.State
	}{
		{
			name: "no acceptance",
			path: []invocation.State{invocation.StateValidated, invocation.StateInvoking, invocation.StateCompleted},
		},
		{
			name: "accepted",
			path: []invocation.State{
				invocation.StateValidated,
				invocation.StateAwaitingAcceptance,
				invocation.StateInvoking,
				invocation.StateCompleted,
			},
		},
		{
			name: "validation failure",
			path: []invocation.State{invocation.StateFailed},
		},
		{
			name: "denied",
			path: []invocation.State{invocation.StateValidated, invocation.StateAwaitingAcceptance, invocation.StateFailed},
		},
		{
			name: "cancelled",
			path: []invocation.State{invocation.StateValidated, invocation.StateInvoking, invocation.StateCancelled},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := newLifecycle(t)
			for _, s := range tt.path {
				if err := l.Transition(s, "step"); err != nil {
					t.Fatalf("Transition(%s) error = %v", s, err)
				}
			}
			last := tt.path[len(tt.path)-1]
			if l.State() != last {
				t.Errorf("State() = %s, want %s", l.State(), last)
			}
			if !l.IsTerminal() {
				t.Error("IsTerminal() = false, want true")
			}
			if got := len(l.History()); got != len(tt.path) {
				t.Errorf("len(History()) = %d, want %d", got, len(tt.path))
			}
		})
	}
}

func TestLifecycle_RejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	l := newLifecycle(t)
	err := l.Transition(invocation.StateCancelled, "too early")
	if !errors.Is(err, invocation.ErrInvalidTransition) {
		t.Errorf("Transition(cancelled) error = %v, want ErrInvalidTransition", err)
	}
	if l.State() != invocation.StateCreated {
		t.Errorf("State() = %s, want created", l.State())
	}
}

func TestLifecycle_HistoryRecordsReasons(t *testing.T) {
	t.Parallel()

	l := newLifecycle(t)
	if err := l.Transition(invocation.StateValidated, "inputs ok"); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	history := l.History()
	if len(history) != 1 {
		t.Fatalf("len(History()) = %d, want 1", len(history))
	}
	h := history[0]
	if h.From != invocation.StateCreated || h.To != invocation.StateValidated {
		t.Errorf("History()[0] = %s->%s, want created->validated", h.From, h.To)
	}
	if h.Reason != "inputs ok" {
		t.Errorf("Reason = %q, want inputs ok", h.Reason)
	}
	if h.At.IsZero() {
		t.Error("At is zero")
	}
}

func TestLifecycle_FailIsIdempotent(t *testing.T) {
	t.Parallel()

	l := newLifecycle(t)
	l.Fail("boom")
	l.Fail("again")

	if l.State() != invocation.StateFailed {
		t.Errorf("State() = %s, want failed", l.State())
	}
	if got := len(l.History()); got != 1 {
		t.Errorf("len(History()) = %d, want 1", got)
	}
}
