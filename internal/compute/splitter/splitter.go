// Package splitter decomposes one cluster-wide invocation into jobs bound to the nodes that must run them.
package splitter

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/segmentio/fasthash/fnv1a"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/placement"
)

// SplitTask is the job produced for one element of a domain.
type SplitTask = job.Spec

// AssignedSplitTask is a SplitTask bound to the node that must execute it.
type AssignedSplitTask struct {
	Task SplitTask
	Node placement.ClusterNode
}

// MapFunc produces the task for one domain element.
type MapFunc[T any] func(T) (SplitTask, error)

// Splitter maps a function over a snapshot of its domain.
// The collector returned by Split holds exactly one task per element of the snapshot.
type Splitter[T any] interface {
	Split(f MapFunc[T]) (*Collector, error)
}

// TableKey identifies a row of a table by its key.
type TableKey struct {
	Table string
	Key   string
}

// Tuple identifies a row of a table by the values of its key columns.
type Tuple struct {
	Table  string
	Values []any
}

// ClusterSplitter creates splitters over the cluster's domains.
type ClusterSplitter struct {
	topology   placement.TopologyProvider
	partitions placement.PartitionProvider
}

func NewClusterSplitter(topology placement.TopologyProvider, partitions placement.PartitionProvider) *ClusterSplitter {
	return &ClusterSplitter{topology: topology, partitions: partitions}
}

// ForNodes splits over every member of the cluster; each task runs on its node.
func (s *ClusterSplitter) ForNodes() Splitter[placement.ClusterNode] {
	return domain[placement.ClusterNode](func() ([]placement.ClusterNode, []placement.ClusterNode, error) {
		members := s.topology.AllMembers()
		return members, members, nil
	})
}

// ForRange splits over the integers [0, n), assigned round-robin over the members of the cluster.
func (s *ClusterSplitter) ForRange(n int) Splitter[int] {
	return domain[int](func() ([]int, []placement.ClusterNode, error) {
		if n < 0 {
			return nil, nil, errors.WithStack(&armadaerrors.ErrInvalidArgument{
				Name:    "range",
				Value:   n,
				Message: "range must not be negative",
			})
		}
		if n == 0 {
			return nil, nil, nil
		}
		members := s.topology.AllMembers()
		if len(members) == 0 {
			return nil, nil, errors.New("cluster has no members")
		}
		elements := make([]int, n)
		owners := make([]placement.ClusterNode, n)
		for i := range elements {
			elements[i] = i
			owners[i] = members[i%len(members)]
		}
		return elements, owners, nil
	})
}

// ForAllParts splits over the partitions of table; each task runs on the owner of its partition.
func (s *ClusterSplitter) ForAllParts(table string) Splitter[int] {
	return domain[int](func() ([]int, []placement.ClusterNode, error) {
		owners, err := s.partitions.Partitions(table)
		if err != nil {
			return nil, nil, err
		}
		elements := make([]int, len(owners))
		for i := range elements {
			elements[i] = i
		}
		return elements, owners, nil
	})
}

// ForKeys splits over keys; each task runs on the owner of the partition its key hashes to.
func (s *ClusterSplitter) ForKeys(keys []TableKey) Splitter[TableKey] {
	return domain[TableKey](func() ([]TableKey, []placement.ClusterNode, error) {
		owners, err := resolveOwners(s.partitions, keys, func(k TableKey) (string, []byte) {
			return k.Table, []byte(k.Key)
		})
		return keys, owners, err
	})
}

// ForTuples splits over tuples; each task runs on the owner of the partition its values hash to.
func (s *ClusterSplitter) ForTuples(tuples []Tuple) Splitter[Tuple] {
	return domain[Tuple](func() ([]Tuple, []placement.ClusterNode, error) {
		owners, err := resolveOwners(s.partitions, tuples, func(t Tuple) (string, []byte) {
			return t.Table, tupleKey(t.Values)
		})
		return tuples, owners, err
	})
}

// resolveOwners resolves the owner of every element from a single ownership snapshot of all the tables involved.
func resolveOwners[T any](
	partitions placement.PartitionProvider,
	elements []T,
	key func(T) (string, []byte),
) ([]placement.ClusterNode, error) {
	if len(elements) == 0 {
		return nil, nil
	}
	tables := make([]string, 0, len(elements))
	keys := make([][]byte, len(elements))
	for i, element := range elements {
		var table string
		table, keys[i] = key(element)
		tables = append(tables, table)
	}
	snapshot, err := partitions.PartitionsOf(tables...)
	if err != nil {
		return nil, err
	}
	owners := make([]placement.ClusterNode, len(elements))
	for i, table := range tables {
		tableOwners := snapshot[table]
		if len(tableOwners) == 0 {
			return nil, errors.Errorf("table %s has no partitions", table)
		}
		owners[i] = tableOwners[partitionOf(keys[i], len(tableOwners))]
	}
	return owners, nil
}

func partitionOf(key []byte, partitions int) int {
	return int(fnv1a.HashBytes32(key) % uint32(partitions))
}

func tupleKey(values []any) []byte {
	var key []byte
	for _, v := range values {
		key = append(key, fmt.Sprintf("%T:%v", v, v)...)
		key = append(key, 0)
	}
	return key
}

// domain is a Splitter whose snapshot returns the elements of the domain and the node each one is bound to.
type domain[T any] func() ([]T, []placement.ClusterNode, error)

func (d domain[T]) Split(f MapFunc[T]) (*Collector, error) {
	elements, owners, err := d()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to snapshot split domain")
	}
	tasks := make([]AssignedSplitTask, len(elements))
	for i, element := range elements {
		task, err := f(element)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to map split element %d", i)
		}
		tasks[i] = AssignedSplitTask{Task: task, Node: owners[i]}
	}
	return &Collector{tasks: tasks}, nil
}
