package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolgate/domain/invocation"
)

// guardCanTransition checks the move against the domain transition table.
// Guards receive the context by value, which is *Context here.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil {
		return false
	}

	var to invocation.State
	if payload, ok := event.Payload.(TransitionPayload); ok {
		to = payload.ToState
	} else {
		to = stateFromEventType(event.Type)
	}

	return invocation.CanTransition(ctx.State, to)
}

// stateFromEventType derives the target state from an event type.
func stateFromEventType(eventType statekit.EventType) invocation.State {
	switch eventType {
	case eventValidate:
		return invocation.StateValidated
	case eventAwait:
		return invocation.StateAwaitingAcceptance
	case eventInvoke:
		return invocation.StateInvoking
	case eventComplete:
		return invocation.StateCompleted
	case eventFail:
		return invocation.StateFailed
	case eventCancel:
		return invocation.StateCancelled
	default:
		return invocation.State(eventType)
	}
}
