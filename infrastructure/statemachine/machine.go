// Package statemachine provides the statekit integration for the invocation lifecycle.
package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolgate/domain/invocation"
)

// Transition is one recorded lifecycle step.
type Transition struct {
	From   invocation.State
	To     invocation.State
	Reason string
	At     time.Time
}

// Context carries invocation state through the state machine.
type Context struct {
	ToolName  string
	ToolUseID string
	State     invocation.State
	History   []Transition
}

// NewContext creates a new machine context for one invocation.
func NewContext(toolName, toolUseID string) *Context {
	return &Context{
		ToolName:  toolName,
		ToolUseID: toolUseID,
		State:     invocation.StateCreated,
	}
}

// State IDs as StateID type for statekit.
const (
	stateCreated   statekit.StateID = statekit.StateID(invocation.StateCreated)
	stateValidated statekit.StateID = statekit.StateID(invocation.StateValidated)
	stateAwaiting  statekit.StateID = statekit.StateID(invocation.StateAwaitingAcceptance)
	stateInvoking  statekit.StateID = statekit.StateID(invocation.StateInvoking)
	stateCompleted statekit.StateID = statekit.StateID(invocation.StateCompleted)
	stateFailed    statekit.StateID = statekit.StateID(invocation.StateFailed)
	stateCancelled statekit.StateID = statekit.StateID(invocation.StateCancelled)
)

// Lifecycle events.
const (
	eventValidate statekit.EventType = "VALIDATE"
	eventAwait    statekit.EventType = "AWAIT"
	eventInvoke   statekit.EventType = "INVOKE"
	eventComplete statekit.EventType = "COMPLETE"
	eventFail     statekit.EventType = "FAIL"
	eventCancel   statekit.EventType = "CANCEL"
)

// NewLifecycleMachine creates the invocation statechart.
func NewLifecycleMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("invocation").
		WithInitial(stateCreated).
		WithContext(&Context{}).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(stateCreated).
		On(eventValidate).Target(stateValidated).Guard("canTransition").Do("recordTransition").
		On(eventFail).Target(stateFailed).Do("recordTransition").
		Done().
		State(stateValidated).
		On(eventAwait).Target(stateAwaiting).Guard("canTransition").Do("recordTransition").
		On(eventInvoke).Target(stateInvoking).Guard("canTransition").Do("recordTransition").
		On(eventFail).Target(stateFailed).Do("recordTransition").
		Done().
		State(stateAwaiting).
		On(eventInvoke).Target(stateInvoking).Guard("canTransition").Do("recordTransition").
		On(eventFail).Target(stateFailed).Do("recordTransition").
		Done().
		State(stateInvoking).
		On(eventComplete).Target(stateCompleted).Do("recordTransition").
		On(eventCancel).Target(stateCancelled).Do("recordTransition").
		On(eventFail).Target(stateFailed).Do("recordTransition").
		Done().
		State(stateCompleted).
		Final().
		Done().
		State(stateFailed).
		Final().
		Done().
		State(stateCancelled).
		Final().
		Done().
		Build()
}

// EventForTransition returns the event type that moves the machine into to.
func EventForTransition(to invocation.State) statekit.EventType {
	switch to {
	case invocation.StateValidated:
		return eventValidate
	case invocation.StateAwaitingAcceptance:
		return eventAwait
	case invocation.StateInvoking:
		return eventInvoke
	case invocation.StateCompleted:
		return eventComplete
	case invocation.StateFailed:
		return eventFail
	case invocation.StateCancelled:
		return eventCancel
	default:
		return statekit.EventType(to)
	}
}

// StateFromMachine converts the machine state ID to the domain state.
func StateFromMachine(stateID statekit.StateID) invocation.State {
	return invocation.State(stateID)
}
