package statemachine

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolgate/domain/invocation"
)

// TransitionPayload carries additional data with a transition event.
type TransitionPayload struct {
	ToState invocation.State
	Reason  string
}

// Lifecycle drives one invocation through the statechart.
// A Lifecycle is owned by a single dispatcher goroutine.
type Lifecycle struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewLifecycle creates and starts an interpreter for one invocation.
func NewLifecycle(machine *statekit.MachineConfig[*Context], ctx *Context) *Lifecycle {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	interp.Start()
	ctx.State = invocation.State(interp.State().Value)
	return &Lifecycle{
		interp: interp,
		ctx:    ctx,
	}
}

// State returns the current state.
func (l *Lifecycle) State() invocation.State {
	return invocation.State(l.interp.State().Value)
}

// Transition moves the invocation to the target state.
func (l *Lifecycle) Transition(to invocation.State, reason string) error {
	from := l.State()
	if !invocation.CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", invocation.ErrInvalidTransition, from, to)
	}

	l.interp.Send(statekit.Event{
		Type: EventForTransition(to),
		Payload: TransitionPayload{
			ToState: to,
			Reason:  reason,
		},
	})

	if got := l.State(); got != to {
		return fmt.Errorf("%w: %s to %s rejected, still %s", invocation.ErrInvalidTransition, from, to, got)
	}
	l.ctx.State = to
	return nil
}

// Fail moves the invocation to Failed unless it already ended.
func (l *Lifecycle) Fail(reason string) {
	if l.IsTerminal() {
		return
	}
	_ = l.Transition(invocation.StateFailed, reason)
}

// IsTerminal returns true if the interpreter reached a final state.
func (l *Lifecycle) IsTerminal() bool {
	return l.interp.Done() || l.State().IsTerminal()
}

// Stop stops the interpreter.
func (l *Lifecycle) Stop() {
	l.interp.Stop()
}

// Context returns the lifecycle context.
func (l *Lifecycle) Context() *Context {
	return l.ctx
}

// History returns the recorded transitions.
func (l *Lifecycle) History() []Transition {
	out := make([]Transition, len(l.ctx.History))
	copy(out, l.ctx.History)
	return out
}
