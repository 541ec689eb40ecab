package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/statusstore"
)

var startTime = time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)

func newJob(t *testing.T, r *Registry, c *clock.FakeClock) *job.Job {
	j := job.New(uuid.New(), "node-1", job.Spec{ClassName: "org.example.Echo"}, c.Now())
	require.NoError(t, r.Add(j))
	return j
}

func TestRegistry_StatusRetention(t *testing.T) {
	ctx := armadacontext.Background()
	c := clock.NewFakeClock(startTime)
	r := New("node-1", statusstore.NewMemoryStore(time.Minute), 5*time.Second, c)

	j := newJob(t, r, c)
	require.NoError(t, j.Transition(job.Queued, c.Now()))
	require.NoError(t, j.Transition(job.Executing, c.Now()))

	c.Step(time.Second)
	status, ok, err := r.Status(ctx, j.Id())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.Executing, status.State)

	c.Step(time.Second)
	require.NoError(t, j.Transition(job.Completed, c.Now()))
	require.NoError(t, r.Finish(ctx, j))
	_, live := r.Get(j.Id())
	assert.False(t, live)

	c.Step(4 * time.Second)
	status, ok, err = r.Status(ctx, j.Id())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.Completed, status.State)

	c.Step(2 * time.Second)
	_, ok, err = r.Status(ctx, j.Id())
	require.NoError(t, err)
	assert.False(t, ok)

	statuses, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestRegistry_List(t *testing.T) {
	ctx := armadacontext.Background()
	c := clock.NewFakeClock(startTime)
	r := New("node-1", statusstore.NewMemoryStore(time.Minute), time.Minute, c)

	running := newJob(t, r, c)
	require.NoError(t, running.Transition(job.Queued, c.Now()))

	finished := newJob(t, r, c)
	require.NoError(t, finished.Transition(job.Queued, c.Now()))
	require.NoError(t, finished.Transition(job.Canceled, c.Now()))
	require.NoError(t, r.Finish(ctx, finished))

	statuses, err := r.List(ctx)
	require.NoError(t, err)
	states := map[uuid.UUID]job.State{}
	for _, s := range statuses {
		states[s.Id] = s.State
	}
	assert.Equal(t, map[uuid.UUID]job.State{
		running.Id():  job.Queued,
		finished.Id(): job.Canceled,
	}, states)
}

func TestRegistry_FinishRejectsLiveJob(t *testing.T) {
	c := clock.NewFakeClock(startTime)
	r := New("node-1", statusstore.NewMemoryStore(time.Minute), time.Minute, c)
	j := newJob(t, r, c)
	assert.Error(t, r.Finish(armadacontext.Background(), j))

	var e *armadaerrors.ErrAlreadyExists
	assert.True(t, errors.As(r.Add(j), &e))
}

func TestRegistry_Sweep(t *testing.T) {
	ctx := armadacontext.Background()
	c := clock.NewFakeClock(startTime)
	store := statusstore.NewMemoryStore(time.Minute)
	r := New("node-1", store, 10*time.Second, c)

	for i := 0; i < 3; i++ {
		j := newJob(t, r, c)
		require.NoError(t, j.Transition(job.Queued, c.Now()))
		require.NoError(t, j.Transition(job.Canceled, c.Now()))
		require.NoError(t, r.Finish(ctx, j))
		c.Step(5 * time.Second)
	}

	deleted, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestRegistry_SharedStoreReportsOwnJobsOnly(t *testing.T) {
	ctx := armadacontext.Background()
	c := clock.NewFakeClock(startTime)
	store := statusstore.NewMemoryStore(time.Minute)
	r1 := New("node-1", store, time.Minute, c)
	r2 := New("node-2", store, time.Minute, c)

	j := job.New(uuid.New(), "node-2", job.Spec{ClassName: "org.example.Echo"}, c.Now())
	require.NoError(t, r2.Add(j))
	require.NoError(t, j.Transition(job.Queued, c.Now()))
	require.NoError(t, j.Transition(job.Executing, c.Now()))
	require.NoError(t, j.Transition(job.Completed, c.Now()))
	require.NoError(t, r2.Finish(ctx, j))

	statuses, err := r1.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)
	_, ok, err := r1.Status(ctx, j.Id())
	require.NoError(t, err)
	assert.False(t, ok)

	statuses, err = r2.List(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, j.Id(), statuses[0].Id)
}

type failingStore struct {
	statusstore.Store
}

func (failingStore) Put(*armadacontext.Context, job.Status, time.Duration) error {
	return errors.New("store unavailable")
}

func TestRegistry_FinishForgetsJobWhenStoreFails(t *testing.T) {
	c := clock.NewFakeClock(startTime)
	r := New("node-1", failingStore{statusstore.NewMemoryStore(time.Minute)}, time.Minute, c)
	j := newJob(t, r, c)
	require.NoError(t, j.Transition(job.Queued, c.Now()))
	require.NoError(t, j.Transition(job.Executing, c.Now()))
	require.NoError(t, j.Transition(job.Failed, c.Now()))

	assert.Error(t, r.Finish(armadacontext.Background(), j))
	_, live := r.Get(j.Id())
	assert.False(t, live)
	assert.Empty(t, r.Live())
}
