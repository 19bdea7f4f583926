package invocation

import "errors"

// ErrInvalidTransition indicates a lifecycle transition the machine does not allow.
var ErrInvalidTransition = errors.New("invalid invocation state transition")
