package job

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
)

// DeploymentUnit identifies a bundle of job code. Units are opaque to the scheduler.
type DeploymentUnit struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (u DeploymentUnit) String() string {
	if u.Version == "" {
		return u.Name
	}
	return u.Name + ":" + u.Version
}

// UseDefaultRetries makes the executor apply its configured retry budget.
const UseDefaultRetries = -1

// Spec describes a job to be submitted.
type Spec struct {
	// Name of the job body, resolved through the job class loader.
	ClassName string
	// Passed to the job body on every attempt.
	Args []any
	// Units holding the job code, searched in order.
	DeploymentUnits []DeploymentUnit
	// Higher priorities are dequeued first.
	Priority int64
	// Number of times a failed attempt is retried before the job fails, or UseDefaultRetries.
	RetryOnFail int
}

// NewSpec returns a spec for className at priority 0 with the default retry budget.
func NewSpec(className string) Spec {
	return Spec{ClassName: className, RetryOnFail: UseDefaultRetries}
}

func (s Spec) WithArgs(args ...any) Spec {
	s.Args = args
	return s
}

func (s Spec) WithDeploymentUnits(units ...DeploymentUnit) Spec {
	s.DeploymentUnits = units
	return s
}

func (s Spec) WithPriority(priority int64) Spec {
	s.Priority = priority
	return s
}

func (s Spec) WithRetryOnFail(retries int) Spec {
	s.RetryOnFail = retries
	return s
}

func (s Spec) Validate() error {
	if s.ClassName == "" {
		return errors.WithStack(&armadaerrors.ErrInvalidArgument{
			Name:    "ClassName",
			Value:   s.ClassName,
			Message: "a job class name is required",
		})
	}
	if s.RetryOnFail < UseDefaultRetries {
		return errors.WithStack(&armadaerrors.ErrInvalidArgument{
			Name:    "RetryOnFail",
			Value:   fmt.Sprintf("%d", s.RetryOnFail),
			Message: "retry budget must be non-negative",
		})
	}
	for i, unit := range s.DeploymentUnits {
		if unit.Name == "" {
			return errors.WithStack(&armadaerrors.ErrInvalidArgument{
				Name:    fmt.Sprintf("DeploymentUnits[%d]", i),
				Value:   unit.String(),
				Message: "deployment unit name must not be empty",
			})
		}
	}
	return nil
}

// Status is a point-in-time snapshot of a job.
type Status struct {
	Id         uuid.UUID `json:"id"`
	State      State     `json:"state"`
	Node       string    `json:"node"`
	Priority   int64     `json:"priority"`
	CreateTime time.Time `json:"createTime"`
	StartTime  time.Time `json:"startTime,omitempty"`
	FinishTime time.Time `json:"finishTime,omitempty"`
}

// Job is the scheduler-internal representation of a submitted job.
// State is readable without locking; all state changes go through Transition, which serialises them per job.
type Job struct {
	id       uuid.UUID
	node     string
	spec     Spec
	priority atomic.Int64
	state    atomic.Int32
	attempts atomic.Int32

	// Guards transitions and timestamps.
	mu         sync.Mutex
	createTime time.Time
	startTime  time.Time
	finishTime time.Time
}

// New creates a job in the Submitted state owned by node.
func New(id uuid.UUID, node string, spec Spec, now time.Time) *Job {
	j := &Job{
		id:         id,
		node:       node,
		spec:       spec,
		createTime: now,
	}
	j.priority.Store(spec.Priority)
	j.state.Store(int32(Submitted))
	return j
}

func (j *Job) Id() uuid.UUID {
	return j.id
}

func (j *Job) Node() string {
	return j.node
}

// Spec returns the spec the job was submitted with. Priority reflects the submitted value, see Priority.
func (j *Job) Spec() Spec {
	return j.spec
}

func (j *Job) State() State {
	return State(j.state.Load())
}

func (j *Job) Priority() int64 {
	return j.priority.Load()
}

func (j *Job) SetPriority(priority int64) {
	j.priority.Store(priority)
}

// Attempts returns how many times the job has started executing.
func (j *Job) Attempts() int {
	return int(j.attempts.Load())
}

// Transition moves the job to state to, recording timestamps. It fails if the lifecycle forbids the change.
func (j *Job) Transition(to State, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(j.State(), to, now)
}

// TransitionFrom moves the job from state from to state to, returning false if the job was not in state from.
func (j *Job) TransitionFrom(from, to State, now time.Time) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.State() != from {
		return false, nil
	}
	if err := j.transitionLocked(from, to, now); err != nil {
		return false, err
	}
	return true, nil
}

func (j *Job) transitionLocked(from, to State, now time.Time) error {
	if !CanTransition(from, to) {
		return errors.WithStack(&InvalidTransitionError{From: from, To: to})
	}
	j.state.Store(int32(to))
	if to == Executing {
		j.attempts.Add(1)
		if j.startTime.IsZero() {
			j.startTime = now
		}
	}
	if to.IsTerminal() {
		j.finishTime = now
	}
	return nil
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		Id:         j.id,
		State:      j.State(),
		Node:       j.node,
		Priority:   j.Priority(),
		CreateTime: j.createTime,
		StartTime:  j.startTime,
		FinishTime: j.finishTime,
	}
}
