package placement

import (
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
)

const (
	nodesTable       = "nodes"
	assignmentsTable = "assignments"
	tablesTable      = "tables"
	idIndex          = "id"
	tableIndex       = "table"
)

// ClusterNode is a member of the compute cluster.
type ClusterNode struct {
	// Unique name of the node.
	Name string `json:"name" mapstructure:"name" validate:"required"`
	// gRPC address of the node's job control service.
	Address string `json:"address" mapstructure:"address" validate:"required"`
}

func (n ClusterNode) String() string {
	return n.Name
}

type table struct {
	Name       string
	Partitions int
}

type assignment struct {
	Table     string
	Partition int
	Node      string
}

// TopologyProvider gives access to the current cluster membership.
type TopologyProvider interface {
	// LocalMember returns the node this process runs as.
	LocalMember() ClusterNode
	// AllMembers returns a snapshot of all cluster members ordered by name.
	AllMembers() []ClusterNode
	// Member looks up a member by name.
	Member(name string) (ClusterNode, bool)
}

// PartitionProvider gives access to partition ownership of tables.
type PartitionProvider interface {
	// Partitions returns one consistent ownership snapshot of table, indexed by partition id.
	Partitions(table string) ([]ClusterNode, error)
	// PartitionsOf returns the ownership of several tables, all taken from the same snapshot.
	PartitionsOf(tables ...string) (map[string][]ClusterNode, error)
}

// ClusterState holds cluster membership and partition ownership in memdb. Every read is served from a single read
// transaction and every update is applied in a single write transaction, so readers always see a consistent state.
type ClusterState struct {
	local ClusterNode
	db    *memdb.MemDB
}

func NewClusterState(local ClusterNode) (*ClusterState, error) {
	db, err := memdb.NewMemDB(clusterStateSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &ClusterState{local: local, db: db}
	if err := s.SetMembers([]ClusterNode{local}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ClusterState) LocalMember() ClusterNode {
	return s.local
}

func (s *ClusterState) AllMembers() []ClusterNode {
	txn := s.db.Txn(false)
	defer txn.Abort()
	members, err := allMembers(txn)
	if err != nil {
		// Only fails for a table or index missing from the schema.
		panic(err)
	}
	return members
}

func (s *ClusterState) Member(name string) (ClusterNode, bool) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(nodesTable, idIndex, name)
	if err != nil || raw == nil {
		return ClusterNode{}, false
	}
	return *raw.(*ClusterNode), true
}

// SetMembers replaces the cluster membership. The local member is always kept.
func (s *ClusterState) SetMembers(members []ClusterNode) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(nodesTable, idIndex); err != nil {
		return errors.WithStack(err)
	}
	if err := txn.Insert(nodesTable, &s.local); err != nil {
		return errors.WithStack(err)
	}
	for i := range members {
		if members[i].Name == s.local.Name {
			continue
		}
		member := members[i]
		if err := txn.Insert(nodesTable, &member); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	return nil
}

// AssignPartitions replaces the ownership of the named table. owners[i] is the name of the node owning partition i and must
// be a current member.
func (s *ClusterState) AssignPartitions(name string, owners []string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(assignmentsTable, tableIndex, name); err != nil {
		return errors.WithStack(err)
	}
	if err := txn.Insert(tablesTable, &table{Name: name, Partitions: len(owners)}); err != nil {
		return errors.WithStack(err)
	}
	for partition, owner := range owners {
		raw, err := txn.First(nodesTable, idIndex, owner)
		if err != nil {
			return errors.WithStack(err)
		}
		if raw == nil {
			return errors.WithStack(&armadaerrors.ErrInvalidArgument{
				Name:    fmt.Sprintf("owners[%d]", partition),
				Value:   owner,
				Message: "partition owner is not a cluster member",
			})
		}
		if err := txn.Insert(assignmentsTable, &assignment{Table: name, Partition: partition, Node: owner}); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	return nil
}

func (s *ClusterState) Partitions(name string) ([]ClusterNode, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return partitions(txn, name)
}

func (s *ClusterState) PartitionsOf(tables ...string) (map[string][]ClusterNode, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	result := make(map[string][]ClusterNode, len(tables))
	for _, name := range tables {
		if _, ok := result[name]; ok {
			continue
		}
		owners, err := partitions(txn, name)
		if err != nil {
			return nil, err
		}
		result[name] = owners
	}
	return result, nil
}

func partitions(txn *memdb.Txn, name string) ([]ClusterNode, error) {
	raw, err := txn.First(tablesTable, idIndex, name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if raw == nil {
		return nil, errors.WithStack(&armadaerrors.ErrNotFound{Type: "table", Value: name, Message: "no partitions have been assigned"})
	}
	owners := make([]ClusterNode, raw.(*table).Partitions)
	it, err := txn.Get(assignmentsTable, tableIndex, name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		a := obj.(*assignment)
		member, err := txn.First(nodesTable, idIndex, a.Node)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if member == nil {
			return nil, errors.Errorf("partition %d of table %s is owned by %s, which has left the cluster", a.Partition, name, a.Node)
		}
		owners[a.Partition] = *member.(*ClusterNode)
	}
	return owners, nil
}

func allMembers(txn *memdb.Txn) ([]ClusterNode, error) {
	it, err := txn.Get(nodesTable, idIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var members []ClusterNode
	for obj := it.Next(); obj != nil; obj = it.Next() {
		members = append(members, *obj.(*ClusterNode))
	}
	slices.SortFunc(members, func(a, b ClusterNode) bool { return a.Name < b.Name })
	return members, nil
}

func clusterStateSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			nodesTable: {
				Name: nodesTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
			tablesTable: {
				Name: tablesTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
			assignmentsTable: {
				Name: assignmentsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:   idIndex,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Table"},
								&memdb.IntFieldIndex{Field: "Partition"},
							},
						},
					},
					tableIndex: {
						Name:    tableIndex,
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "Table"},
					},
				},
			},
		},
	}
}
