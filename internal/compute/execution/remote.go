package execution

import (
	"sync"

	"github.com/google/uuid"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// RemoteControl controls jobs on other nodes.
type RemoteControl interface {
	CancelJob(ctx *armadacontext.Context, node string, id uuid.UUID) (CancelResult, error)
	JobStatus(ctx *armadacontext.Context, node string, id uuid.UUID) (job.Status, bool, error)
	ChangePriority(ctx *armadacontext.Context, node string, id uuid.UUID, priority int64) (bool, error)
	// JobResult blocks until the job finishes and returns its result.
	JobResult(ctx *armadacontext.Context, node string, id uuid.UUID) (any, error)
}

// RemoteExecution is the handle of a job submitted to another node. The id of the job is only known once the
// submission has been acknowledged, so every operation first waits for it.
type RemoteExecution struct {
	node      string
	submitted *future.Future[uuid.UUID]
	control   RemoteControl
	// Context result retrieval runs under; outlives the call that created the handle.
	ctx *armadacontext.Context

	resultOnce sync.Once
	result     *future.Future[any]
}

func NewRemoteExecution(ctx *armadacontext.Context, node string, submitted *future.Future[uuid.UUID], control RemoteControl) *RemoteExecution {
	return &RemoteExecution{
		node:      node,
		submitted: submitted,
		control:   control,
		ctx:       armadacontext.Detached(ctx),
		result:    future.New[any](),
	}
}

// Id returns the job id, or uuid.Nil while the submission is still in flight.
func (x *RemoteExecution) Id() uuid.UUID {
	id, done, err := x.submitted.TryGet()
	if !done || err != nil {
		return uuid.Nil
	}
	return id
}

func (x *RemoteExecution) Node() string {
	return x.node
}

// ResultAsync returns a future resolved with the job result. The remote result is fetched on first call.
func (x *RemoteExecution) ResultAsync() *future.Future[any] {
	x.resultOnce.Do(func() {
		go func() {
			id, err := x.submitted.Get(x.ctx)
			if err != nil {
				x.result.Fail(err)
				return
			}
			value, err := x.control.JobResult(x.ctx, x.node, id)
			if err != nil {
				x.result.Fail(err)
				return
			}
			x.result.Complete(value)
		}()
	})
	return x.result
}

func (x *RemoteExecution) Status(ctx *armadacontext.Context) (job.Status, bool, error) {
	id, err := x.submitted.Get(ctx)
	if err != nil {
		return job.Status{}, false, err
	}
	return x.control.JobStatus(ctx, x.node, id)
}

func (x *RemoteExecution) Cancel(ctx *armadacontext.Context) (CancelResult, error) {
	id, err := x.submitted.Get(ctx)
	if err != nil {
		return CancelNotFound, err
	}
	return x.control.CancelJob(ctx, x.node, id)
}

func (x *RemoteExecution) ChangePriority(ctx *armadacontext.Context, priority int64) (bool, error) {
	id, err := x.submitted.Get(ctx)
	if err != nil {
		return false, err
	}
	return x.control.ChangePriority(ctx, x.node, id, priority)
}
