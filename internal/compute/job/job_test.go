package job

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
)

var baseTime = time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	allStates := []State{Submitted, Queued, Executing, Completed, Failed, Canceled}
	allowed := map[State]map[State]bool{
		Submitted: {Queued: true},
		Queued:    {Executing: true, Canceled: true},
		Executing: {Completed: true, Failed: true, Canceled: true, Queued: true},
	}
	for _, from := range allStates {
		for _, to := range allStates {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, allowed[from][to], CanTransition(from, to))
			})
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	assert.False(t, Submitted.IsTerminal())
	assert.False(t, Queued.IsTerminal())
	assert.False(t, Executing.IsTerminal())
	assert.True(t, Completed.IsTerminal())
	assert.True(t, Failed.IsTerminal())
	assert.True(t, Canceled.IsTerminal())
}

func TestState_TextRoundTrip(t *testing.T) {
	b, err := json.Marshal(Executing)
	require.NoError(t, err)
	assert.Equal(t, `"EXECUTING"`, string(b))

	var s State
	require.NoError(t, json.Unmarshal([]byte(`"canceled"`), &s))
	assert.Equal(t, Canceled, s)

	assert.Error(t, json.Unmarshal([]byte(`"RUNNING"`), &s))
}

func TestSpec_Validate(t *testing.T) {
	tests := map[string]struct {
		spec  Spec
		valid bool
	}{
		"minimal": {
			spec:  Spec{ClassName: "org.example.Echo"},
			valid: true,
		},
		"with units and retries": {
			spec: Spec{
				ClassName:       "org.example.Echo",
				DeploymentUnits: []DeploymentUnit{{Name: "unit-a", Version: "1.0.0"}},
				RetryOnFail:     3,
			},
			valid: true,
		},
		"missing class name": {
			spec: Spec{},
		},
		"default retries": {
			spec:  NewSpec("org.example.Echo"),
			valid: true,
		},
		"negative retries": {
			spec: Spec{ClassName: "org.example.Echo", RetryOnFail: -2},
		},
		"unnamed unit": {
			spec: Spec{ClassName: "org.example.Echo", DeploymentUnits: []DeploymentUnit{{Version: "1.0.0"}}},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			var e *armadaerrors.ErrInvalidArgument
			assert.True(t, errors.As(err, &e))
		})
	}
}

func TestSpec_Builder(t *testing.T) {
	unit := DeploymentUnit{Name: "unit-a", Version: "1.0.0"}
	spec := NewSpec("org.example.Echo").
		WithArgs("x", 1).
		WithDeploymentUnits(unit).
		WithPriority(7).
		WithRetryOnFail(2)
	assert.Equal(t, Spec{
		ClassName:       "org.example.Echo",
		Args:            []any{"x", 1},
		DeploymentUnits: []DeploymentUnit{unit},
		Priority:        7,
		RetryOnFail:     2,
	}, spec)
	assert.Equal(t, UseDefaultRetries, NewSpec("org.example.Echo").RetryOnFail)
	assert.Equal(t, "unit-a:1.0.0", unit.String())
}

func TestJob_Lifecycle(t *testing.T) {
	j := New(uuid.New(), "node-1", Spec{ClassName: "org.example.Echo", Priority: 5}, baseTime)
	assert.Equal(t, Submitted, j.State())
	assert.Equal(t, int64(5), j.Priority())

	require.NoError(t, j.Transition(Queued, baseTime.Add(time.Second)))
	require.NoError(t, j.Transition(Executing, baseTime.Add(2*time.Second)))
	require.NoError(t, j.Transition(Queued, baseTime.Add(3*time.Second)))
	require.NoError(t, j.Transition(Executing, baseTime.Add(4*time.Second)))
	require.NoError(t, j.Transition(Completed, baseTime.Add(5*time.Second)))

	expected := Status{
		Id:         j.Id(),
		State:      Completed,
		Node:       "node-1",
		Priority:   5,
		CreateTime: baseTime,
		StartTime:  baseTime.Add(2 * time.Second),
		FinishTime: baseTime.Add(5 * time.Second),
	}
	if diff := cmp.Diff(expected, j.Status()); diff != "" {
		t.Errorf("unexpected status (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, j.Attempts())

	err := j.Transition(Executing, baseTime)
	var e *InvalidTransitionError
	require.True(t, errors.As(err, &e))
	assert.Equal(t, Completed, e.From)
	assert.Equal(t, Executing, e.To)
}

func TestJob_TransitionFrom(t *testing.T) {
	j := New(uuid.New(), "node-1", Spec{ClassName: "org.example.Echo"}, baseTime)
	require.NoError(t, j.Transition(Queued, baseTime))

	ok, err := j.TransitionFrom(Executing, Completed, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Queued, j.State())

	ok, err = j.TransitionFrom(Queued, Canceled, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Canceled, j.State())
}

func TestJob_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	j := New(uuid.New(), "node-1", Spec{ClassName: "org.example.Echo"}, baseTime)
	require.NoError(t, j.Transition(Queued, baseTime))

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, to := range []State{Executing, Canceled} {
		wg.Add(1)
		go func(i int, to State) {
			defer wg.Done()
			ok, err := j.TransitionFrom(Queued, to, baseTime)
			assert.NoError(t, err)
			results[i] = ok
		}(i, to)
	}
	wg.Wait()
	assert.NotEqual(t, results[0], results[1])
}
