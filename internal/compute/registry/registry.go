package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"k8s.io/utils/clock"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/job"
	"github.com/G-Research/armada-compute/internal/compute/statusstore"
)

// Registry tracks the jobs submitted on this node. Jobs that have not finished are held in memory; once a job
// finishes its status is moved to a statusstore.Store and stays queryable for the retention window. The store may be
// shared with other nodes; only statuses recorded by this node are reported.
type Registry struct {
	node      string
	store     statusstore.Store
	retention time.Duration
	clock     clock.PassiveClock

	mu   sync.RWMutex
	live map[uuid.UUID]*job.Job
}

func New(node string, store statusstore.Store, retention time.Duration, clock clock.PassiveClock) *Registry {
	return &Registry{
		node:      node,
		store:     store,
		retention: retention,
		clock:     clock,
		live:      make(map[uuid.UUID]*job.Job),
	}
}

func (r *Registry) Add(j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[j.Id()]; ok {
		return errors.WithStack(&armadaerrors.ErrAlreadyExists{Type: "job", Value: j.Id().String()})
	}
	r.live[j.Id()] = j
	return nil
}

// Remove forgets a live job without recording its status. Used when a submission is rolled back.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// Get returns a job that has not finished yet.
func (r *Registry) Get(id uuid.UUID) (*job.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.live[id]
	return j, ok
}

// Live returns all jobs that have not finished yet.
func (r *Registry) Live() []*job.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Values(r.live)
}

// Status returns the status of a job. It reports false once the job finished more than the retention window ago.
func (r *Registry) Status(ctx *armadacontext.Context, id uuid.UUID) (job.Status, bool, error) {
	if j, ok := r.Get(id); ok {
		return j.Status(), true, nil
	}
	status, ok, err := r.store.Get(ctx, id)
	if err != nil || !ok {
		return job.Status{}, false, err
	}
	if !r.owned(status) || r.expired(status) {
		return job.Status{}, false, nil
	}
	return status, true, nil
}

// List returns the statuses of all live jobs and of all finished jobs still within the retention window.
func (r *Registry) List(ctx *armadacontext.Context) ([]job.Status, error) {
	finished, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	live := r.Live()
	statuses := make([]job.Status, 0, len(live)+len(finished))
	for _, j := range live {
		statuses = append(statuses, j.Status())
	}
	for _, status := range finished {
		if _, ok := r.Get(status.Id); ok || !r.owned(status) || r.expired(status) {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Finish moves a job that reached a terminal state to the status store.
func (r *Registry) Finish(ctx *armadacontext.Context, j *job.Job) error {
	status := j.Status()
	if !status.State.IsTerminal() {
		return errors.Errorf("job %s is %s, not finished", status.Id, status.State)
	}
	defer func() {
		r.mu.Lock()
		delete(r.live, status.Id)
		r.mu.Unlock()
	}()
	ttl := status.FinishTime.Add(r.retention).Sub(r.clock.Now())
	if ttl <= 0 {
		return nil
	}
	return r.store.Put(ctx, status, ttl)
}

// Sweep deletes finished statuses whose retention window has elapsed and returns how many were deleted.
func (r *Registry) Sweep(ctx *armadacontext.Context) (int, error) {
	statuses, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, status := range statuses {
		if !r.expired(status) {
			continue
		}
		if err := r.store.Delete(ctx, status.Id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (r *Registry) owned(status job.Status) bool {
	return status.Node == r.node
}

func (r *Registry) expired(status job.Status) bool {
	return !r.clock.Now().Before(status.FinishTime.Add(r.retention))
}
