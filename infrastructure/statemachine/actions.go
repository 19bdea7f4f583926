package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/toolgate/domain/invocation"
)

// recordTransition appends the step to the context history.
// Actions receive a pointer to the machine context, so **Context here.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}

	c := *ctx
	var to invocation.State
	var reason string
	if payload, ok := event.Payload.(TransitionPayload); ok {
		to = payload.ToState
		reason = payload.Reason
	} else {
		to = stateFromEventType(event.Type)
	}

	c.History = append(c.History, Transition{
		From:   c.State,
		To:     to,
		Reason: reason,
		At:     time.Now(),
	})
	c.State = to
}
