// Package management gives cluster-wide visibility and control over jobs, wherever they run.
package management

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/common/future"
	"github.com/G-Research/armada-compute/internal/common/logging"
	"github.com/G-Research/armada-compute/internal/compute/execution"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/placement"
	"github.com/G-Research/armada-compute/internal/compute/splitter"
)

// LocalJobs controls the jobs of this node.
type LocalJobs interface {
	Submit(ctx *armadacontext.Context, spec job.Spec) (*execution.LocalExecution, error)
	Cancel(ctx *armadacontext.Context, id uuid.UUID) (execution.CancelResult, error)
	ChangePriority(ctx *armadacontext.Context, id uuid.UUID, priority int64) (bool, error)
	Status(ctx *armadacontext.Context, id uuid.UUID) (job.Status, bool, error)
	List(ctx *armadacontext.Context) ([]job.Status, error)
}

// RemoteJobs controls the jobs of other nodes.
type RemoteJobs interface {
	execution.RemoteControl
	JobStates(ctx *armadacontext.Context, node string, ids ...uuid.UUID) ([]job.Status, error)
	SubmitJob(ctx *armadacontext.Context, node string, spec job.Spec) (uuid.UUID, error)
}

// Filter selects the statuses List returns.
type Filter func(job.Status) bool

// All selects every job.
func All(job.Status) bool {
	return true
}

// InState selects jobs in any of the given states.
func InState(states ...job.State) Filter {
	return func(status job.Status) bool {
		return slices.Contains(states, status.State)
	}
}

// Management lists and controls jobs across the cluster. Requests for a job not running on this node are sent to
// the node that owns it.
type Management struct {
	local    LocalJobs
	remote   RemoteJobs
	topology placement.TopologyProvider
	// Job id to the name of the node that owns the job, for jobs seen on other nodes.
	owners *lru.Cache
}

var _ splitter.Dispatcher = (*Management)(nil)

func New(local LocalJobs, remote RemoteJobs, topology placement.TopologyProvider, ownerCacheSize int) (*Management, error) {
	owners, err := lru.New(ownerCacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Management{
		local:    local,
		remote:   remote,
		topology: topology,
		owners:   owners,
	}, nil
}

func (m *Management) isLocal(node string) bool {
	return node == m.topology.LocalMember().Name
}

// List returns the statuses of all jobs known to the reachable members of the cluster that match filter.
// A nil filter selects every job. Members that cannot be reached are logged and skipped.
func (m *Management) List(ctx *armadacontext.Context, filter Filter) ([]job.Status, error) {
	if filter == nil {
		filter = All
	}
	members := m.topology.AllMembers()
	perNode := make([][]job.Status, len(members))
	g, gctx := armadacontext.ErrGroup(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			var states []job.Status
			var err error
			if m.isLocal(member.Name) {
				states, err = m.local.List(gctx)
			} else {
				states, err = m.remote.JobStates(gctx, member.Name)
			}
			if err != nil {
				logging.WithStacktrace(gctx.Log.WithField("node", member.Name), err).Warn("failed to list jobs")
				return nil
			}
			perNode[i] = states
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result []job.Status
	seen := make(map[uuid.UUID]bool)
	for _, states := range perNode {
		for _, status := range states {
			if seen[status.Id] {
				continue
			}
			seen[status.Id] = true
			if !m.isLocal(status.Node) {
				m.owners.Add(status.Id, status.Node)
			}
			if filter(status) {
				result = append(result, status)
			}
		}
	}
	slices.SortFunc(result, func(a, b job.Status) bool {
		if !a.CreateTime.Equal(b.CreateTime) {
			return a.CreateTime.Before(b.CreateTime)
		}
		return a.Id.String() < b.Id.String()
	})
	return result, nil
}

// CancelJob cancels a job on whichever node owns it.
func (m *Management) CancelJob(ctx *armadacontext.Context, id uuid.UUID) (execution.CancelResult, error) {
	ctx = armadacontext.WithLogField(ctx, "jobId", id)
	node, err := m.owner(ctx, id)
	if err != nil {
		return execution.CancelNotFound, err
	}
	var result execution.CancelResult
	if m.isLocal(node) {
		result, err = m.local.Cancel(ctx, id)
	} else {
		result, err = m.remote.CancelJob(ctx, node, id)
	}
	if err != nil {
		return execution.CancelNotFound, err
	}
	ctx.Log.Infof("cancel of job on node %s: %s", node, result)
	return result, nil
}

// ChangeJobPriority changes the priority of a queued job on whichever node owns it. It returns false if the job is
// no longer queued.
func (m *Management) ChangeJobPriority(ctx *armadacontext.Context, id uuid.UUID, priority int64) (bool, error) {
	ctx = armadacontext.WithLogField(ctx, "jobId", id)
	node, err := m.owner(ctx, id)
	if err != nil {
		return false, err
	}
	if m.isLocal(node) {
		return m.local.ChangePriority(ctx, id, priority)
	}
	return m.remote.ChangePriority(ctx, node, id, priority)
}

// JobStatus returns the status of a job on whichever node owns it, or false if no node knows the job.
func (m *Management) JobStatus(ctx *armadacontext.Context, id uuid.UUID) (job.Status, bool, error) {
	node, err := m.owner(ctx, id)
	var notFound *armadaerrors.ErrNotFound
	if errors.As(err, &notFound) {
		return job.Status{}, false, nil
	} else if err != nil {
		return job.Status{}, false, err
	}
	if m.isLocal(node) {
		return m.local.Status(ctx, id)
	}
	return m.remote.JobStatus(ctx, node, id)
}

// Submit submits a job to node. Submissions to other nodes are sent in the background; the returned execution
// resolves once the job has been accepted and finished there.
func (m *Management) Submit(ctx *armadacontext.Context, node placement.ClusterNode, spec job.Spec) (execution.JobExecution, error) {
	if m.isLocal(node.Name) {
		local, err := m.local.Submit(ctx, spec)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	submitted := future.New[uuid.UUID]()
	submitCtx := armadacontext.WithLogField(armadacontext.Detached(ctx), "node", node.Name)
	go func() {
		id, err := m.remote.SubmitJob(submitCtx, node.Name, spec)
		if err != nil {
			logging.WithStacktrace(submitCtx.Log, err).Warn("failed to submit job")
			submitted.Fail(err)
			return
		}
		m.owners.Add(id, node.Name)
		submitted.Complete(id)
	}()
	return execution.NewRemoteExecution(ctx, node.Name, submitted, m.remote), nil
}

// owner returns the name of the node that owns a job. Jobs not known locally or in the owner cache are looked up on
// every other member.
func (m *Management) owner(ctx *armadacontext.Context, id uuid.UUID) (string, error) {
	if _, ok, err := m.local.Status(ctx, id); err != nil {
		return "", err
	} else if ok {
		return m.topology.LocalMember().Name, nil
	}
	if node, ok := m.owners.Get(id); ok {
		return node.(string), nil
	}

	var members []placement.ClusterNode
	for _, member := range m.topology.AllMembers() {
		if !m.isLocal(member.Name) {
			members = append(members, member)
		}
	}
	found := make([]bool, len(members))
	failures := make([]error, len(members))
	g, gctx := armadacontext.ErrGroup(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			states, err := m.remote.JobStates(gctx, member.Name, id)
			failures[i] = err
			found[i] = err == nil && len(states) > 0
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var result *multierror.Error
	for i, member := range members {
		if found[i] {
			m.owners.Add(id, member.Name)
			return member.Name, nil
		}
		if failures[i] != nil {
			result = multierror.Append(result, failures[i])
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return "", errors.WithMessagef(err, "job %s not found on any reachable node", id)
	}
	return "", errors.WithStack(&armadaerrors.ErrNotFound{Type: "job", Value: id.String()})
}
