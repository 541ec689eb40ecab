package transport

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/message"
)

// LocalJobs is the view of the local executor the job control service exposes to other nodes.
type LocalJobs interface {
	Submit(ctx *armadacontext.Context, spec job.Spec) (*execution.LocalExecution, error)
	Cancel(ctx *armadacontext.Context, id uuid.UUID) (execution.CancelResult, error)
	ChangePriority(ctx *armadacontext.Context, id uuid.UUID, priority int64) (bool, error)
	Status(ctx *armadacontext.Context, id uuid.UUID) (job.Status, bool, error)
	List(ctx *armadacontext.Context) ([]job.Status, error)
	Result(id uuid.UUID) (*future.Future[any], bool)
}

var _ LocalJobs = (*execution.Executor)(nil)

// Server answers job control requests from other nodes against the local executor.
type Server struct {
	jobs LocalJobs
}

func NewServer(jobs LocalJobs) *Server {
	return &Server{jobs: jobs}
}

func (s *Server) CancelJob(grpcCtx context.Context, req *message.JobCancelRequest) (*message.JobCancelResponse, error) {
	ctx := armadacontext.WithLogField(armadacontext.FromGrpcCtx(grpcCtx), "jobId", req.JobId)
	result, err := s.jobs.Cancel(ctx, req.JobId)
	if err != nil {
		ctx.Log.WithError(err).Warn("failed to cancel job")
	}
	return message.NewJobCancelResponse(result, err), nil
}

func (s *Server) JobStates(grpcCtx context.Context, req *message.JobStatesRequest) (*message.JobStatesResponse, error) {
	ctx := armadacontext.FromGrpcCtx(grpcCtx)
	if len(req.JobIds) == 0 {
		states, err := s.jobs.List(ctx)
		if err != nil {
			return message.NewJobStatesErrorResponse(err), nil
		}
		return message.NewJobStatesResponse(states), nil
	}
	states := make([]job.Status, 0, len(req.JobIds))
	for _, id := range req.JobIds {
		status, ok, err := s.jobs.Status(ctx, id)
		if err != nil {
			return message.NewJobStatesErrorResponse(err), nil
		}
		if ok {
			states = append(states, status)
		}
	}
	return message.NewJobStatesResponse(states), nil
}

func (s *Server) ChangePriority(grpcCtx context.Context, req *message.JobChangePriorityRequest) (*message.JobChangePriorityResponse, error) {
	ctx := armadacontext.WithLogField(armadacontext.FromGrpcCtx(grpcCtx), "jobId", req.JobId)
	changed, err := s.jobs.ChangePriority(ctx, req.JobId, req.Priority)
	return message.NewJobChangePriorityResponse(changed, err), nil
}

func (s *Server) SubmitJob(grpcCtx context.Context, req *message.JobSubmitRequest) (*message.JobSubmitResponse, error) {
	ctx := armadacontext.WithLogField(armadacontext.FromGrpcCtx(grpcCtx), "className", req.ClassName)
	local, err := s.jobs.Submit(ctx, req.Spec())
	if err != nil {
		return &message.JobSubmitResponse{Throwable: message.NewThrowable(err)}, nil
	}
	return &message.JobSubmitResponse{JobId: local.Id()}, nil
}

// JobResult blocks until the job finishes or the caller gives up.
func (s *Server) JobResult(grpcCtx context.Context, req *message.JobResultRequest) (*message.JobResultResponse, error) {
	result, ok := s.jobs.Result(req.JobId)
	if !ok {
		err := errors.WithStack(&armadaerrors.ErrNotFound{Type: "job", Value: req.JobId.String()})
		return &message.JobResultResponse{Throwable: message.NewThrowable(err)}, nil
	}
	value, err := result.Get(grpcCtx)
	switch {
	case err == nil:
		return &message.JobResultResponse{Result: value}, nil
	case execution.IsCancelled(err):
		return &message.JobResultResponse{Cancelled: true}, nil
	case grpcCtx.Err() != nil:
		// The caller is gone; nobody reads this response.
		return nil, grpcCtx.Err()
	default:
		return &message.JobResultResponse{Throwable: message.NewThrowable(err)}, nil
	}
}
