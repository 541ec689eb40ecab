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

// stubExecution is a JobExecution whose result is controlled by the test.
type stubExecution struct {
	id     uuid.UUID
	node   string
	result *future.Future[any]
	cancel CancelResult
}

func newStub(node string) *stubExecution {
	return &stubExecution{id: uuid.New(), node: node, result: future.New[any](), cancel: CancelRequested}
}

func (s *stubExecution) Id() uuid.UUID                    { return s.id }
func (s *stubExecution) Node() string                     { return s.node }
func (s *stubExecution) ResultAsync() *future.Future[any] { return s.result }
func (s *stubExecution) Status(*armadacontext.Context) (job.Status, bool, error) {
	return job.Status{Id: s.id, Node: s.node}, true, nil
}

func (s *stubExecution) Cancel(*armadacontext.Context) (CancelResult, error) {
	if s.cancel == CancelNotFound {
		return CancelNotFound, errors.New("node unreachable")
	}
	return s.cancel, nil
}

func (s *stubExecution) ChangePriority(*armadacontext.Context, int64) (bool, error) {
	return false, nil
}

func awaitAggregate(t *testing.T, a *Aggregate) ([]any, error) {
	ctx, cancel := armadacontext.WithTimeout(armadacontext.Background(), testTimeout)
	defer cancel()
	values, err := a.ResultAsync().Get(ctx)
	require.NoError(t, ctx.Err(), "timed out waiting for aggregate")
	return values, err
}

func TestAggregate_Empty(t *testing.T) {
	a := NewAggregate(nil)
	assert.True(t, a.ResultAsync().IsDone())
	values, err := awaitAggregate(t, a)
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.NotNil(t, values)
}

func TestAggregate_Policy(t *testing.T) {
	tests := map[string]struct {
		outcomes        []error
		expectFailure   bool
		expectCancelled bool
	}{
		"all succeed": {
			outcomes: []error{nil, nil, nil},
		},
		"one fails": {
			outcomes:      []error{nil, errors.New("task failed"), nil},
			expectFailure: true,
		},
		"one cancelled": {
			outcomes:        []error{nil, &CancelledError{}, nil},
			expectCancelled: true,
		},
		"failure wins over cancellation": {
			outcomes:      []error{&CancelledError{}, errors.New("task failed")},
			expectFailure: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			stubs := make([]JobExecution, len(tc.outcomes))
			for i := range tc.outcomes {
				stubs[i] = newStub("node-1")
			}
			a := NewAggregate(stubs)
			// Resolve in reverse to show results keep execution order.
			for i := len(tc.outcomes) - 1; i >= 0; i-- {
				if tc.outcomes[i] == nil {
					stubs[i].ResultAsync().Complete(i)
				} else {
					stubs[i].ResultAsync().Fail(tc.outcomes[i])
				}
			}

			values, err := awaitAggregate(t, a)
			switch {
			case tc.expectFailure:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "task failed")
				assert.False(t, IsCancelled(err))
			case tc.expectCancelled:
				assert.True(t, IsCancelled(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, []any{0, 1, 2}, values)
			}
		})
	}
}

func TestAggregate_PartialResultsAreKept(t *testing.T) {
	ok := newStub("node-1")
	failing := newStub("node-2")
	pending := newStub("node-3")
	a := NewAggregate([]JobExecution{ok, failing, pending})

	ok.result.Complete("partial")
	failing.result.Fail(errors.New("boom"))

	results := a.Results()
	require.Len(t, results, 3)
	assert.Equal(t, TaskResult{Id: ok.id, Node: "node-1", Value: "partial", Done: true}, results[0])
	assert.True(t, results[1].Done)
	assert.EqualError(t, results[1].Err, "boom")
	assert.False(t, results[2].Done)
	assert.False(t, a.ResultAsync().IsDone(), "aggregate waits for every execution")

	pending.result.Complete("late")
	_, err := awaitAggregate(t, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node-2")
	assert.Equal(t, "partial", a.Results()[0].Value)
}

func TestAggregate_Cancel(t *testing.T) {
	first := newStub("node-1")
	unreachable := newStub("node-2")
	unreachable.cancel = CancelNotFound
	a := NewAggregate([]JobExecution{first, unreachable})

	results, err := a.Cancel(armadacontext.Background())
	assert.Equal(t, []CancelResult{CancelRequested, CancelNotFound}, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node unreachable")

	first.result.Fail(&CancelledError{JobId: first.id})
	unreachable.result.Complete(nil)
	_, err = awaitAggregate(t, a)
	assert.True(t, IsCancelled(err))
}
