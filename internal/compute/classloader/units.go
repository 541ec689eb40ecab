package classloader

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// UnitCode is an open handle on the code of one deployment unit.
type UnitCode interface {
	// Lookup returns the factory for the named class if the unit defines it.
	Lookup(className string) (job.Factory, bool, error)
	Close() error
}

// DeploymentUnitResolver opens the code of deployment units.
type DeploymentUnitResolver interface {
	Resolve(ctx *armadacontext.Context, unit job.DeploymentUnit) (UnitCode, error)
}

// UnitRepository is an in-memory DeploymentUnitResolver. Units are deployed as a set of named job factories.
type UnitRepository struct {
	mu    sync.RWMutex
	units map[job.DeploymentUnit]map[string]job.Factory
	// Number of open handles per unit.
	open map[job.DeploymentUnit]int
}

func NewUnitRepository() *UnitRepository {
	return &UnitRepository{
		units: make(map[job.DeploymentUnit]map[string]job.Factory),
		open:  make(map[job.DeploymentUnit]int),
	}
}

func (r *UnitRepository) Deploy(unit job.DeploymentUnit, classes map[string]job.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[unit]; ok {
		return errors.WithStack(&armadaerrors.ErrAlreadyExists{Type: "deployment unit", Value: unit.String()})
	}
	copied := make(map[string]job.Factory, len(classes))
	for name, factory := range classes {
		copied[name] = factory
	}
	r.units[unit] = copied
	return nil
}

// Undeploy removes a unit. Handles that are already open keep working until closed.
func (r *UnitRepository) Undeploy(unit job.DeploymentUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.units[unit]; !ok {
		return errors.WithStack(&armadaerrors.ErrNotFound{Type: "deployment unit", Value: unit.String()})
	}
	delete(r.units, unit)
	return nil
}

// OpenHandles returns the number of open handles on unit.
func (r *UnitRepository) OpenHandles(unit job.DeploymentUnit) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open[unit]
}

func (r *UnitRepository) Resolve(_ *armadacontext.Context, unit job.DeploymentUnit) (UnitCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	classes, ok := r.units[unit]
	if !ok {
		return nil, errors.WithStack(&armadaerrors.ErrNotFound{Type: "deployment unit", Value: unit.String()})
	}
	r.open[unit]++
	return &unitHandle{repo: r, unit: unit, classes: classes}, nil
}

type unitHandle struct {
	repo    *UnitRepository
	unit    job.DeploymentUnit
	classes map[string]job.Factory

	mu     sync.Mutex
	closed bool
}

func (h *unitHandle) Lookup(className string) (job.Factory, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false, errors.Errorf("deployment unit %s is closed", h.unit)
	}
	factory, ok := h.classes[className]
	return factory, ok, nil
}

func (h *unitHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	h.repo.mu.Lock()
	defer h.repo.mu.Unlock()
	h.repo.open[h.unit]--
	if h.repo.open[h.unit] <= 0 {
		delete(h.repo.open, h.unit)
	}
	return nil
}
