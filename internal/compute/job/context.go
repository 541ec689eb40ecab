package job

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
)

// ComputeJob is the body of a job. Implementations should return promptly once ctx.IsCancelled reports true.
type ComputeJob interface {
	Execute(ctx *Context, args []any) (any, error)
}

// ComputeJobFunc adapts a function to ComputeJob.
type ComputeJobFunc func(ctx *Context, args []any) (any, error)

func (f ComputeJobFunc) Execute(ctx *Context, args []any) (any, error) {
	return f(ctx, args)
}

// Factory creates a fresh job body for each attempt.
type Factory func() ComputeJob

// Context is passed to a running job body. It is done once the attempt is cancelled.
type Context struct {
	*armadacontext.Context
	jobId     uuid.UUID
	attempt   int
	cancelled *atomic.Bool
}

func NewContext(ctx *armadacontext.Context, jobId uuid.UUID, attempt int, cancelled *atomic.Bool) *Context {
	return &Context{
		Context:   ctx,
		jobId:     jobId,
		attempt:   attempt,
		cancelled: cancelled,
	}
}

func (c *Context) JobId() uuid.UUID {
	return c.jobId
}

// Attempt is 1 for the first execution and increases with every retry.
func (c *Context) Attempt() int {
	return c.attempt
}

func (c *Context) IsCancelled() bool {
	return c.cancelled.Load() || c.Err() != nil
}
