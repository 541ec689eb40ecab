package job

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// State is the lifecycle state of a job.
type State int32

const (
	Submitted State = iota
	Queued
	Executing
	Completed
	Failed
	Canceled
)

var stateNames = map[State]string{
	Submitted: "SUBMITTED",
	Queued:    "QUEUED",
	Executing: "EXECUTING",
	Completed: "COMPLETED",
	Failed:    "FAILED",
	Canceled:  "CANCELED",
}

// validTransitions lists, for each state, the states a job may move to next.
// Executing -> Queued is a retry after a failed attempt.
var validTransitions = map[State][]State{
	Submitted: {Queued},
	Queued:    {Executing, Canceled},
	Executing: {Completed, Failed, Canceled, Queued},
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// IsTerminal returns true for states a job never leaves.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed || s == Canceled
}

func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, errors.Errorf("unknown job state %d", int32(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseState(s string) (State, error) {
	for state, name := range stateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return Submitted, errors.Errorf("unknown job state %q", s)
}

// CanTransition returns true if a job in state from may move to state to.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError is returned when a state change is not allowed by the job lifecycle.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid job state transition %s -> %s", e.From, e.To)
}
