// Package execution runs submitted jobs and exposes handles to observe and control them.
package execution

import (
	"github.com/google/uuid"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// JobExecution is the handle of a submitted job.
type JobExecution interface {
	Id() uuid.UUID
	// Node returns the name of the node the job runs on.
	Node() string
	// ResultAsync returns the future resolved with the job result. Every call returns the same future.
	// Cancelled jobs resolve with a *CancelledError.
	ResultAsync() *future.Future[any]
	// Status returns false once the retention window of the finished job has elapsed.
	Status(ctx *armadacontext.Context) (job.Status, bool, error)
	Cancel(ctx *armadacontext.Context) (CancelResult, error)
	// ChangePriority returns false if the job is no longer queued.
	ChangePriority(ctx *armadacontext.Context, priority int64) (bool, error)
}

var (
	_ JobExecution = &LocalExecution{}
	_ JobExecution = &RemoteExecution{}
)
