package classloader

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadaerrors"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

// SystemClasses holds the job classes provided by the platform itself. These take precedence over any class
// defined in a deployment unit.
type SystemClasses struct {
	mu      sync.RWMutex
	classes map[string]Class
}

func NewSystemClasses() *SystemClasses {
	return &SystemClasses{classes: make(map[string]Class)}
}

func (s *SystemClasses) Register(name string, factory job.Factory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[name]; ok {
		return errors.WithStack(&armadaerrors.ErrAlreadyExists{Type: "system class", Value: name})
	}
	s.classes[name] = Class{Name: name, Factory: factory}
	return nil
}

func (s *SystemClasses) Resolve(name string) (Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class, ok := s.classes[name]
	if !ok {
		return Resolution{}, nil
	}
	return found(class), nil
}
