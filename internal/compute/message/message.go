// Package message defines the requests and responses of the remote job control protocol.
//
// Responses carry either a result or a Throwable describing why the remote node could not produce one. A
// Throwable is an application error raised by the remote node; failures to deliver a message are reported by the
// transport and never appear here.
package message

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// Throwable describes an error raised by the remote node while handling a request.
type Throwable struct {
	Code    codes.Code `json:"code"`
	Message string     `json:"message"`
}

func NewThrowable(err error) *Throwable {
	return &Throwable{
		Code:    armadaerrors.CodeFromError(errors.Cause(err)),
		Message: err.Error(),
	}
}

// RemoteError is returned to callers when a remote node answered with a Throwable.
type RemoteError struct {
	Node      string
	Throwable Throwable
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("node %s failed to handle request: %s (%s)", e.Node, e.Throwable.Message, e.Throwable.Code)
}

// Err converts t into a *RemoteError, or nil if t is nil.
func (t *Throwable) Err(node string) error {
	if t == nil {
		return nil
	}
	return &RemoteError{Node: node, Throwable: *t}
}

type JobCancelRequest struct {
	JobId uuid.UUID `json:"jobId"`
}

type JobCancelResponse struct {
	Result    execution.CancelResult `json:"result"`
	Throwable *Throwable             `json:"throwable,omitempty"`
}

func NewJobCancelResponse(result execution.CancelResult, err error) *JobCancelResponse {
	if err != nil {
		return &JobCancelResponse{Result: execution.CancelNotFound, Throwable: NewThrowable(err)}
	}
	return &JobCancelResponse{Result: result}
}

// JobStatesRequest asks for the statuses of the given jobs, or of all jobs known to the node if JobIds is empty.
type JobStatesRequest struct {
	JobIds []uuid.UUID `json:"jobIds,omitempty"`
}

// JobStatesResponse carries either States or a Throwable, never both.
type JobStatesResponse struct {
	States    []job.Status `json:"states,omitempty"`
	Throwable *Throwable   `json:"throwable,omitempty"`
}

func NewJobStatesResponse(states []job.Status) *JobStatesResponse {
	return &JobStatesResponse{States: states}
}

func NewJobStatesErrorResponse(err error) *JobStatesResponse {
	return &JobStatesResponse{Throwable: NewThrowable(err)}
}

func (r *JobStatesResponse) Validate() error {
	if r.Throwable != nil && len(r.States) > 0 {
		return errors.WithStack(&armadaerrors.ErrInvalidArgument{
			Name:    "JobStatesResponse",
			Value:   fmt.Sprintf("%d states", len(r.States)),
			Message: "a response must carry either states or a throwable",
		})
	}
	return nil
}

type JobChangePriorityRequest struct {
	JobId    uuid.UUID `json:"jobId"`
	Priority int64     `json:"priority"`
}

type JobChangePriorityResponse struct {
	Changed   bool       `json:"changed"`
	Throwable *Throwable `json:"throwable,omitempty"`
}

func NewJobChangePriorityResponse(changed bool, err error) *JobChangePriorityResponse {
	if err != nil {
		return &JobChangePriorityResponse{Throwable: NewThrowable(err)}
	}
	return &JobChangePriorityResponse{Changed: changed}
}

// JobSubmitRequest asks a node to run a job.
type JobSubmitRequest struct {
	ClassName       string               `json:"className"`
	Args            []any                `json:"args,omitempty"`
	DeploymentUnits []job.DeploymentUnit `json:"deploymentUnits,omitempty"`
	Priority        int64                `json:"priority"`
	RetryOnFail     int                  `json:"retryOnFail"`
}

func NewJobSubmitRequest(spec job.Spec) *JobSubmitRequest {
	return &JobSubmitRequest{
		ClassName:       spec.ClassName,
		Args:            spec.Args,
		DeploymentUnits: spec.DeploymentUnits,
		Priority:        spec.Priority,
		RetryOnFail:     spec.RetryOnFail,
	}
}

func (r *JobSubmitRequest) Spec() job.Spec {
	return job.Spec{
		ClassName:       r.ClassName,
		Args:            r.Args,
		DeploymentUnits: r.DeploymentUnits,
		Priority:        r.Priority,
		RetryOnFail:     r.RetryOnFail,
	}
}

type JobSubmitResponse struct {
	JobId     uuid.UUID  `json:"jobId"`
	Throwable *Throwable `json:"throwable,omitempty"`
}

// JobResultRequest waits for a job to finish and returns its result.
type JobResultRequest struct {
	JobId uuid.UUID `json:"jobId"`
}

type JobResultResponse struct {
	Result    any        `json:"result,omitempty"`
	Cancelled bool       `json:"cancelled,omitempty"`
	Throwable *Throwable `json:"throwable,omitempty"`
}
