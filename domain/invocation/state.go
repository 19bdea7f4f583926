// Package invocation provides the lifecycle model of a single tool invocation.
package invocation

// State is a stage in the life of one tool invocation.
type State string

const (
	StateCreated            State = "created"             // Tool constructed from a request
	StateValidated          State = "validated"           // Parameters and paths checked
	StateAwaitingAcceptance State = "awaiting_acceptance" // Waiting on a human decision
	StateInvoking           State = "invoking"            // Effect in progress
	StateCompleted          State = "completed"           // Terminal success
	StateFailed             State = "failed"              // Terminal failure
	StateCancelled          State = "cancelled"           // Terminal, trigger cancelled mid-invoke
)

// IsTerminal returns true for completed, failed and cancelled.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsValid returns true if the state is a recognized lifecycle state.
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateValidated, StateAwaitingAcceptance, StateInvoking,
		StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// AllStates returns every lifecycle state in path order.
func AllStates() []State {
	return []State{
		StateCreated,
		StateValidated,
		StateAwaitingAcceptance,
		StateInvoking,
		StateCompleted,
		StateFailed,
		StateCancelled,
	}
}

var transitions = map[State][]State{
	StateCreated:            {StateValidated, StateFailed},
	StateValidated:          {StateAwaitingAcceptance, StateInvoking, StateFailed},
	StateAwaitingAcceptance: {StateInvoking, StateFailed},
	StateInvoking:           {StateCompleted, StateFailed, StateCancelled},
}

// CanTransition reports whether the lifecycle permits moving from one state
// to another. Cancelled is reachable only from Invoking.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the states reachable from s.
func Next(s State) []State {
	next := transitions[s]
	out := make([]State, len(next))
	copy(out, next)
	return out
}
