package execution

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/future"
)

// TaskResult is the outcome of one execution of an aggregate. Done is false while the execution is still running.
type TaskResult struct {
	Id    uuid.UUID
	Node  string
	Value any
	Err   error
	Done  bool
}

// Aggregate treats a set of executions as one. Its result fails if any execution fails, is cancelled if any
// execution is cancelled and none failed, and otherwise completes with the results in execution order.
// The result is only resolved once every execution has finished.
type Aggregate struct {
	executions []JobExecution
	result     *future.Future[[]any]
}

func NewAggregate(executions []JobExecution) *Aggregate {
	a := &Aggregate{
		executions: executions,
		result:     future.New[[]any](),
	}
	if len(executions) == 0 {
		a.result.Complete([]any{})
		return a
	}
	go a.await()
	return a
}

func (a *Aggregate) await() {
	values := make([]any, len(a.executions))
	var failures *multierror.Error
	var cancellation error
	for i, x := range a.executions {
		result := x.ResultAsync()
		<-result.Done()
		value, _, err := result.TryGet()
		switch {
		case err == nil:
			values[i] = value
		case IsCancelled(err):
			if cancellation == nil {
				cancellation = err
			}
		default:
			failures = multierror.Append(failures, errors.WithMessagef(err, "task %d on node %s failed", i, x.Node()))
		}
	}
	if err := failures.ErrorOrNil(); err != nil {
		a.result.Fail(err)
	} else if cancellation != nil {
		a.result.Fail(cancellation)
	} else {
		a.result.Complete(values)
	}
}

func (a *Aggregate) Executions() []JobExecution {
	return a.executions
}

// ResultAsync returns the future resolved with the results of all executions.
func (a *Aggregate) ResultAsync() *future.Future[[]any] {
	return a.result
}

// Results returns what each execution has produced so far. Results of completed executions remain available when
// the aggregate fails.
func (a *Aggregate) Results() []TaskResult {
	results := make([]TaskResult, len(a.executions))
	for i, x := range a.executions {
		value, done, err := x.ResultAsync().TryGet()
		results[i] = TaskResult{
			Id:    x.Id(),
			Node:  x.Node(),
			Value: value,
			Err:   err,
			Done:  done,
		}
	}
	return results
}

// Cancel requests cancellation of every execution.
func (a *Aggregate) Cancel(ctx *armadacontext.Context) ([]CancelResult, error) {
	results := make([]CancelResult, len(a.executions))
	var result *multierror.Error
	for i, x := range a.executions {
		r, err := x.Cancel(ctx)
		if err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "failed to cancel task %d on node %s", i, x.Node()))
		}
		results[i] = r
	}
	return results, result.ErrorOrNil()
}
