package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

type fakeRemoteControl struct {
	node     string
	id       uuid.UUID
	result   any
	priority int64
}

func (f *fakeRemoteControl) check(node string, id uuid.UUID) error {
	if node != f.node || id != f.id {
		return errors.Errorf("unexpected job %s on %s", id, node)
	}
	return nil
}

func (f *fakeRemoteControl) CancelJob(_ *armadacontext.Context, node string, id uuid.UUID) (CancelResult, error) {
	return CancelRequested, f.check(node, id)
}

func (f *fakeRemoteControl) JobStatus(_ *armadacontext.Context, node string, id uuid.UUID) (job.Status, bool, error) {
	return job.Status{Id: id, Node: node, State: job.Executing}, true, f.check(node, id)
}

func (f *fakeRemoteControl) ChangePriority(_ *armadacontext.Context, node string, id uuid.UUID, priority int64) (bool, error) {
	f.priority = priority
	return true, f.check(node, id)
}

func (f *fakeRemoteControl) JobResult(_ *armadacontext.Context, node string, id uuid.UUID) (any, error) {
	return f.result, f.check(node, id)
}

func TestRemoteExecution(t *testing.T) {
	ctx := armadacontext.Background()
	control := &fakeRemoteControl{node: "node-2", id: uuid.New(), result: "remote result"}
	submitted := future.New[uuid.UUID]()
	x := NewRemoteExecution(ctx, "node-2", submitted, control)

	assert.Equal(t, uuid.Nil, x.Id())
	assert.Equal(t, "node-2", x.Node())
	result := x.ResultAsync()
	assert.Same(t, result, x.ResultAsync())
	assert.False(t, result.IsDone())

	submitted.Complete(control.id)
	assert.Equal(t, control.id, x.Id())

	value, err := await(t, x)
	require.NoError(t, err)
	assert.Equal(t, "remote result", value)

	status, ok, err := x.Status(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, job.Executing, status.State)

	cancelResult, err := x.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, CancelRequested, cancelResult)

	changed, err := x.ChangePriority(ctx, 9)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(9), control.priority)
}

func TestRemoteExecution_SubmissionFailed(t *testing.T) {
	submitErr := errors.New("node-2 rejected the job")
	x := NewRemoteExecution(armadacontext.Background(), "node-2", future.Failed[uuid.UUID](submitErr), &fakeRemoteControl{})

	_, err := await(t, x)
	assert.ErrorIs(t, err, submitErr)
	_, err = x.Cancel(armadacontext.Background())
	assert.ErrorIs(t, err, submitErr)
}
