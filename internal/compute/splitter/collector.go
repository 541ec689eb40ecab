package splitter

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/placement"
)

// Dispatcher submits a job to a node.
type Dispatcher interface {
	Submit(ctx *armadacontext.Context, node placement.ClusterNode, task SplitTask) (execution.JobExecution, error)
}

// Collector holds the tasks produced by a split. It can be split further; every task it produces stays bound to
// the node of the task it was produced from.
type Collector struct {
	tasks []AssignedSplitTask
}

var _ Splitter[AssignedSplitTask] = (*Collector)(nil)

func (c *Collector) Tasks() []AssignedSplitTask {
	tasks := make([]AssignedSplitTask, len(c.tasks))
	copy(tasks, c.tasks)
	return tasks
}

func (c *Collector) Len() int {
	return len(c.tasks)
}

func (c *Collector) Split(f MapFunc[AssignedSplitTask]) (*Collector, error) {
	tasks := make([]AssignedSplitTask, len(c.tasks))
	for i, assigned := range c.tasks {
		task, err := f(assigned)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to map split task %d", i)
		}
		tasks[i] = AssignedSplitTask{Task: task, Node: assigned.Node}
	}
	return &Collector{tasks: tasks}, nil
}

// Dispatch submits every task to its node and returns the executions as one aggregate.
// If any submission fails, the executions already submitted are cancelled and the error is returned.
func (c *Collector) Dispatch(ctx *armadacontext.Context, dispatcher Dispatcher) (*execution.Aggregate, error) {
	executions := make([]execution.JobExecution, 0, len(c.tasks))
	for i, assigned := range c.tasks {
		x, err := dispatcher.Submit(ctx, assigned.Node, assigned.Task)
		if err != nil {
			var result *multierror.Error
			result = multierror.Append(result, errors.WithMessagef(err, "failed to submit split task %d to node %s", i, assigned.Node.Name))
			for _, submitted := range executions {
				if _, cancelErr := submitted.Cancel(ctx); cancelErr != nil {
					result = multierror.Append(result, cancelErr)
				}
			}
			return nil, result.ErrorOrNil()
		}
		executions = append(executions, x)
	}
	ctx.Log.Debugf("dispatched %d split tasks", len(executions))
	return execution.NewAggregate(executions), nil
}
