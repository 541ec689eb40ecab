// Package statusstore keeps the statuses of finished jobs for a bounded retention window.
package statusstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// Store holds job statuses until their ttl elapses. Lookups of expired or unknown ids report absence, not an error.
type Store interface {
	Put(ctx *armadacontext.Context, status job.Status, ttl time.Duration) error
	Get(ctx *armadacontext.Context, id uuid.UUID) (job.Status, bool, error)
	List(ctx *armadacontext.Context) ([]job.Status, error)
	Delete(ctx *armadacontext.Context, id uuid.UUID) error
}
