package splitter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/placement"
)

var (
	node1 = placement.ClusterNode{Name: "node-1", Address: "node-1:50051"}
	node2 = placement.ClusterNode{Name: "node-2", Address: "node-2:50051"}
	node3 = placement.ClusterNode{Name: "node-3", Address: "node-3:50051"}
)

func testClusterState(t *testing.T) *placement.ClusterState {
	state, err := placement.NewClusterState(node1)
	require.NoError(t, err)
	require.NoError(t, state.SetMembers([]placement.ClusterNode{node1, node2, node3}))
	require.NoError(t, state.AssignPartitions("people", []string{"node-1", "node-2", "node-3", "node-1"}))
	require.NoError(t, state.AssignPartitions("empty", []string{}))
	return state
}

// countingPartitions records how often the ownership of each table is read and how many snapshots are taken.
type countingPartitions struct {
	placement.PartitionProvider
	mu        sync.Mutex
	reads     map[string]int
	snapshots int
}

func (p *countingPartitions) Partitions(table string) ([]placement.ClusterNode, error) {
	p.mu.Lock()
	p.reads[table]++
	p.snapshots++
	p.mu.Unlock()
	return p.PartitionProvider.Partitions(table)
}

func (p *countingPartitions) PartitionsOf(tables ...string) (map[string][]placement.ClusterNode, error) {
	p.mu.Lock()
	seen := make(map[string]bool)
	for _, table := range tables {
		if !seen[table] {
			seen[table] = true
			p.reads[table]++
		}
	}
	p.snapshots++
	p.mu.Unlock()
	return p.PartitionProvider.PartitionsOf(tables...)
}

// rebalancingPartitions moves every partition of its tables to another node after each read.
type rebalancingPartitions struct {
	*placement.ClusterState
	t      *testing.T
	tables []string
	to     string
	reads  int
}

func (p *rebalancingPartitions) Partitions(table string) ([]placement.ClusterNode, error) {
	defer p.rebalance()
	return p.ClusterState.Partitions(table)
}

func (p *rebalancingPartitions) PartitionsOf(tables ...string) (map[string][]placement.ClusterNode, error) {
	defer p.rebalance()
	return p.ClusterState.PartitionsOf(tables...)
}

func (p *rebalancingPartitions) rebalance() {
	p.reads++
	for _, table := range p.tables {
		require.NoError(p.t, p.AssignPartitions(table, []string{p.to, p.to}))
	}
}

func echoTask[T any](v T) (SplitTask, error) {
	return job.NewSpec("org.example.Echo").WithArgs(v), nil
}

func nodeNames(c *Collector) []string {
	names := make([]string, 0, c.Len())
	for _, task := range c.Tasks() {
		names = append(names, task.Node.Name)
	}
	return names
}

func TestClusterSplitter_ForNodes(t *testing.T) {
	splitter := NewClusterSplitter(testClusterState(t), testClusterState(t))
	collector, err := splitter.ForNodes().Split(func(node placement.ClusterNode) (SplitTask, error) {
		return echoTask(node.Name)
	})
	require.NoError(t, err)
	require.Equal(t, 3, collector.Len())
	for _, task := range collector.Tasks() {
		assert.Equal(t, []any{task.Node.Name}, task.Task.Args)
	}
	assert.Equal(t, []string{"node-1", "node-2", "node-3"}, nodeNames(collector))
}

func TestClusterSplitter_ForAllParts(t *testing.T) {
	tests := map[string]struct {
		table         string
		expectedNodes []string
		expectedErr   bool
	}{
		"partitions": {
			table:         "people",
			expectedNodes: []string{"node-1", "node-2", "node-3", "node-1"},
		},
		"no partitions": {
			table:         "empty",
			expectedNodes: []string{},
		},
		"unknown table": {
			table:       "missing",
			expectedErr: true,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			state := testClusterState(t)
			collector, err := NewClusterSplitter(state, state).ForAllParts(tc.table).Split(echoTask[int])
			if tc.expectedErr {
				var notFound *armadaerrors.ErrNotFound
				assert.True(t, errors.As(err, &notFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedNodes, nodeNames(collector))
			for i, task := range collector.Tasks() {
				assert.Equal(t, []any{i}, task.Task.Args)
			}
		})
	}
}

func TestClusterSplitter_ForRange(t *testing.T) {
	state := testClusterState(t)
	splitter := NewClusterSplitter(state, state)

	collector, err := splitter.ForRange(5).Split(echoTask[int])
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1", "node-2", "node-3", "node-1", "node-2"}, nodeNames(collector))

	collector, err = splitter.ForRange(0).Split(echoTask[int])
	require.NoError(t, err)
	assert.Equal(t, 0, collector.Len())

	_, err = splitter.ForRange(-1).Split(echoTask[int])
	var invalid *armadaerrors.ErrInvalidArgument
	assert.True(t, errors.As(err, &invalid))
}

func TestClusterSplitter_KeysUseOneOwnershipSnapshotPerTable(t *testing.T) {
	state := testClusterState(t)
	require.NoError(t, state.AssignPartitions("orders", []string{"node-3", "node-2"}))
	partitions := &countingPartitions{PartitionProvider: state, reads: make(map[string]int)}
	splitter := NewClusterSplitter(state, partitions)

	var keys []TableKey
	for i := 0; i < 20; i++ {
		keys = append(keys, TableKey{Table: "people", Key: fmt.Sprintf("person-%d", i)})
		keys = append(keys, TableKey{Table: "orders", Key: fmt.Sprintf("order-%d", i)})
	}
	collector, err := splitter.ForKeys(keys).Split(func(k TableKey) (SplitTask, error) {
		return echoTask(k.Key)
	})
	require.NoError(t, err)
	require.Equal(t, len(keys), collector.Len())
	assert.Equal(t, map[string]int{"people": 1, "orders": 1}, partitions.reads)
	assert.Equal(t, 1, partitions.snapshots)

	people, err := state.Partitions("people")
	require.NoError(t, err)
	orders, err := state.Partitions("orders")
	require.NoError(t, err)
	for i, task := range collector.Tasks() {
		owners := people
		if keys[i].Table == "orders" {
			owners = orders
		}
		assert.Equal(t, owners[partitionOf([]byte(keys[i].Key), len(owners))], task.Node)
	}

	// The same key always lands on the same node.
	again, err := splitter.ForKeys(keys).Split(func(k TableKey) (SplitTask, error) {
		return echoTask(k.Key)
	})
	require.NoError(t, err)
	assert.Equal(t, nodeNames(collector), nodeNames(again))
}

func TestClusterSplitter_KeysAcrossTablesShareOneSnapshot(t *testing.T) {
	state := testClusterState(t)
	require.NoError(t, state.AssignPartitions("t1", []string{"node-1", "node-1"}))
	require.NoError(t, state.AssignPartitions("t2", []string{"node-1", "node-1"}))
	partitions := &rebalancingPartitions{ClusterState: state, t: t, tables: []string{"t1", "t2"}, to: "node-2"}
	splitter := NewClusterSplitter(state, partitions)

	keys := []TableKey{{Table: "t1", Key: "k"}, {Table: "t2", Key: "k"}}
	collector, err := splitter.ForKeys(keys).Split(func(k TableKey) (SplitTask, error) {
		return echoTask(k.Key)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, partitions.reads)
	assert.Equal(t, []string{"node-1", "node-1"}, nodeNames(collector))
}

func TestClusterSplitter_ForTuples(t *testing.T) {
	state := testClusterState(t)
	splitter := NewClusterSplitter(state, state)
	tuples := []Tuple{
		{Table: "people", Values: []any{1, "a"}},
		{Table: "people", Values: []any{2, "b"}},
		{Table: "people", Values: []any{1, "a"}},
	}
	collector, err := splitter.ForTuples(tuples).Split(func(tuple Tuple) (SplitTask, error) {
		return echoTask(tuple.Values)
	})
	require.NoError(t, err)
	require.Equal(t, 3, collector.Len())
	assert.Equal(t, collector.Tasks()[0].Node, collector.Tasks()[2].Node)

	_, err = splitter.ForTuples([]Tuple{{Table: "empty", Values: []any{1}}}).Split(echoTask[Tuple])
	assert.Error(t, err)

	collector, err = splitter.ForTuples(nil).Split(echoTask[Tuple])
	require.NoError(t, err)
	assert.Equal(t, 0, collector.Len())
}

func TestSplit_MappingErrorAbortsSplit(t *testing.T) {
	state := testClusterState(t)
	_, err := NewClusterSplitter(state, state).ForNodes().Split(func(node placement.ClusterNode) (SplitTask, error) {
		if node.Name == "node-2" {
			return SplitTask{}, errors.New("no task for node-2")
		}
		return echoTask(node.Name)
	})
	assert.ErrorContains(t, err, "no task for node-2")
}

func TestCollector_ChainingPreservesNodes(t *testing.T) {
	state := testClusterState(t)
	collector, err := NewClusterSplitter(state, state).ForAllParts("people").Split(echoTask[int])
	require.NoError(t, err)

	chained, err := collector.Split(func(assigned AssignedSplitTask) (SplitTask, error) {
		return assigned.Task.WithPriority(7), nil
	})
	require.NoError(t, err)
	assert.Equal(t, nodeNames(collector), nodeNames(chained))
	for _, task := range chained.Tasks() {
		assert.Equal(t, int64(7), task.Task.Priority)
	}
	for _, task := range collector.Tasks() {
		assert.Equal(t, int64(0), task.Task.Priority, "chaining must not modify the source collector")
	}
}

type fakeExecution struct {
	id        uuid.UUID
	node      string
	result    *future.Future[any]
	cancelled bool
}

func (x *fakeExecution) Id() uuid.UUID { return x.id }
func (x *fakeExecution) Node() string { return x.node }
func (x *fakeExecution) ResultAsync() *future.Future[any] { return x.result }
func (x *fakeExecution) ChangePriority(*armadacontext.Context, int64) (bool, error) {
	return false, nil
}

func (x *fakeExecution) Status(*armadacontext.Context) (job.Status, bool, error) {
	return job.Status{Id: x.id, Node: x.node}, true, nil
}

func (x *fakeExecution) Cancel(*armadacontext.Context) (execution.CancelResult, error) {
	x.cancelled = true
	x.result.Fail(&execution.CancelledError{JobId: x.id})
	return execution.CancelRequested, nil
}

// fakeDispatcher completes every job with its first argument, failing submissions to failNode.
type fakeDispatcher struct {
	failNode  string
	submitted []*fakeExecution
}

func (d *fakeDispatcher) Submit(_ *armadacontext.Context, node placement.ClusterNode, task SplitTask) (execution.JobExecution, error) {
	if node.Name == d.failNode {
		return nil, errors.Errorf("node %s is unavailable", node.Name)
	}
	x := &fakeExecution{id: uuid.New(), node: node.Name, result: future.New[any]()}
	x.result.Complete(task.Args[0])
	d.submitted = append(d.submitted, x)
	return x, nil
}

func TestCollector_Dispatch(t *testing.T) {
	state := testClusterState(t)
	ctx := armadacontext.Background()
	collector, err := NewClusterSplitter(state, state).ForNodes().Split(func(node placement.ClusterNode) (SplitTask, error) {
		return echoTask(node.Name)
	})
	require.NoError(t, err)

	aggregate, err := collector.Dispatch(ctx, &fakeDispatcher{})
	require.NoError(t, err)
	values, err := aggregate.ResultAsync().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"node-1", "node-2", "node-3"}, values)
}

func TestCollector_DispatchEmpty(t *testing.T) {
	state := testClusterState(t)
	collector, err := NewClusterSplitter(state, state).ForAllParts("empty").Split(echoTask[int])
	require.NoError(t, err)

	aggregate, err := collector.Dispatch(armadacontext.Background(), &fakeDispatcher{})
	require.NoError(t, err)
	values, done, err := aggregate.ResultAsync().TryGet()
	require.True(t, done)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCollector_DispatchFailureCancelsSubmitted(t *testing.T) {
	state := testClusterState(t)
	collector, err := NewClusterSplitter(state, state).ForNodes().Split(func(node placement.ClusterNode) (SplitTask, error) {
		return echoTask(node.Name)
	})
	require.NoError(t, err)

	dispatcher := &fakeDispatcher{failNode: "node-3"}
	_, err = collector.Dispatch(armadacontext.Background(), dispatcher)
	assert.ErrorContains(t, err, "node node-3 is unavailable")
	require.Len(t, dispatcher.submitted, 2)
	for _, x := range dispatcher.submitted {
		assert.True(t, x.cancelled)
	}
}
