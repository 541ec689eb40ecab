package execution

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CancelResult is the outcome of a cancellation request.
type CancelResult int

const (
	// No job with the given id is known.
	CancelNotFound CancelResult = iota
	// The job was removed from the queue and never ran.
	CancelledBeforeStart
	// The job is executing and has been asked to stop.
	CancelRequested
	// The job had already reached a terminal state.
	AlreadyFinished
)

var cancelResultNames = map[CancelResult]string{
	CancelNotFound:       "NOT_FOUND",
	CancelledBeforeStart: "CANCELLED_BEFORE_START",
	CancelRequested:      "CANCEL_REQUESTED",
	AlreadyFinished:      "ALREADY_FINISHED",
}

func (r CancelResult) String() string {
	if name, ok := cancelResultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("CancelResult(%d)", int(r))
}

func (r CancelResult) MarshalText() ([]byte, error) {
	if _, ok := cancelResultNames[r]; !ok {
		return nil, errors.Errorf("unknown cancel result %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *CancelResult) UnmarshalText(text []byte) error {
	for result, name := range cancelResultNames {
		if name == string(text) {
			*r = result
			return nil
		}
	}
	return errors.Errorf("unknown cancel result %q", string(text))
}

// CancelledError is the error a cancelled job's result resolves with.
type CancelledError struct {
	JobId uuid.UUID
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("job %s was cancelled", e.JobId)
}

// IsCancelled returns true if err is or wraps a CancelledError.
func IsCancelled(err error) bool {
	var e *CancelledError
	return errors.As(err, &e)
}
