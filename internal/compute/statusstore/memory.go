package statusstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// MemoryStore is a Store local to this process.
type MemoryStore struct {
	statuses *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{statuses: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Put(_ *armadacontext.Context, status job.Status, ttl time.Duration) error {
	if ttl <= 0 {
		s.statuses.Delete(status.Id.String())
		return nil
	}
	s.statuses.Set(status.Id.String(), status, ttl)
	return nil
}

func (s *MemoryStore) Get(_ *armadacontext.Context, id uuid.UUID) (job.Status, bool, error) {
	raw, ok := s.statuses.Get(id.String())
	if !ok {
		return job.Status{}, false, nil
	}
	return raw.(job.Status), true, nil
}

func (s *MemoryStore) List(_ *armadacontext.Context) ([]job.Status, error) {
	items := s.statuses.Items()
	statuses := make([]job.Status, 0, len(items))
	for _, item := range items {
		statuses = append(statuses, item.Object.(job.Status))
	}
	return statuses, nil
}

func (s *MemoryStore) Delete(_ *armadacontext.Context, id uuid.UUID) error {
	s.statuses.Delete(id.String())
	return nil
}
