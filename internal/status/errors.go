package status

import "fmt"

// InvalidStatusTransitionError is returned when an increment is invoked
// outside InProgress, or a phase-specific increment is invoked before that
// phase has started.
type InvalidStatusTransitionError struct {
	Op    string
	State State
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("status: invalid transition %q from state %s", e.Op, e.State)
}
