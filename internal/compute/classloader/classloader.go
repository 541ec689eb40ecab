package classloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/G-Research/armada-compute/internal/common/armadacontext"
	"github.com/G-Research/armada-compute/internal/compute/job"
)

const defaultClassCacheSize = 256

// Class is a named job body. Unit is nil for classes provided by the platform.
type Class struct {
	Name    string
	Unit    *job.DeploymentUnit
	Factory job.Factory
}

// Resolution is the outcome of looking up a class name. Found is false if the resolver does not know the name.
type Resolution struct {
	Class Class
	Found bool
}

func found(class Class) Resolution {
	return Resolution{Class: class, Found: true}
}

// ClassResolver looks up classes by name.
type ClassResolver interface {
	Resolve(name string) (Resolution, error)
}

// ClassNotFoundError is returned when neither the platform nor any deployment unit defines a class.
type ClassNotFoundError struct {
	Name  string
	Units []job.DeploymentUnit
}

func (e *ClassNotFoundError) Error() string {
	units := make([]string, len(e.Units))
	for i, u := range e.Units {
		units[i] = u.String()
	}
	return fmt.Sprintf("class %q not found in platform classes or deployment units [%s]", e.Name, strings.Join(units, ", "))
}

// JobClassLoader resolves class names for a single job submission.
// Platform classes always take precedence; deployment units are searched in the order they were given.
type JobClassLoader struct {
	parent ClassResolver
	units  []job.DeploymentUnit
	code   []UnitCode
	// Classes defined by deployment units, keyed by name.
	defined *lru.Cache

	mu     sync.Mutex
	closed bool
}

// NewJobClassLoader opens the code of every unit through resolver. If any unit cannot be opened, the units
// already opened are closed again.
func NewJobClassLoader(
	ctx *armadacontext.Context,
	parent ClassResolver,
	resolver DeploymentUnitResolver,
	units []job.DeploymentUnit,
) (*JobClassLoader, error) {
	defined, err := lru.New(defaultClassCacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	code := make([]UnitCode, 0, len(units))
	for _, unit := range units {
		c, err := resolver.Resolve(ctx, unit)
		if err != nil {
			var result *multierror.Error
			result = multierror.Append(result, errors.WithMessagef(err, "failed to open deployment unit %s", unit))
			for _, opened := range code {
				if closeErr := opened.Close(); closeErr != nil {
					result = multierror.Append(result, closeErr)
				}
			}
			return nil, result.ErrorOrNil()
		}
		code = append(code, c)
	}
	return &JobClassLoader{
		parent:  parent,
		units:   units,
		code:    code,
		defined: defined,
	}, nil
}

// LoadClass resolves name, first through the platform classes and then through the deployment units.
func (l *JobClassLoader) LoadClass(name string) (Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Class{}, errors.Errorf("class loader for units %v is closed", l.units)
	}

	if l.parent != nil {
		resolution, err := l.parent.Resolve(name)
		if err != nil {
			return Class{}, errors.WithMessagef(err, "failed to resolve class %q from platform classes", name)
		}
		if resolution.Found {
			return resolution.Class, nil
		}
	}

	resolution, err := l.findClass(name)
	if err != nil {
		return Class{}, err
	}
	if !resolution.Found {
		return Class{}, errors.WithStack(&ClassNotFoundError{Name: name, Units: l.units})
	}
	return resolution.Class, nil
}

func (l *JobClassLoader) findClass(name string) (Resolution, error) {
	if cached, ok := l.defined.Get(name); ok {
		return found(cached.(Class)), nil
	}
	for i, code := range l.code {
		factory, ok, err := code.Lookup(name)
		if err != nil {
			return Resolution{}, errors.WithMessagef(err, "failed to look up class %q in unit %s", name, l.units[i])
		}
		if !ok {
			continue
		}
		unit := l.units[i]
		class := Class{Name: name, Unit: &unit, Factory: factory}
		l.defined.Add(name, class)
		return found(class), nil
	}
	return Resolution{}, nil
}

// Units returns the deployment units this loader searches.
func (l *JobClassLoader) Units() []job.DeploymentUnit {
	return l.units
}

// Close releases the code of every deployment unit. Calling Close more than once is a no-op.
func (l *JobClassLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.defined.Purge()

	var result *multierror.Error
	for i, code := range l.code {
		if err := code.Close(); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "failed to close deployment unit %s", l.units[i]))
		}
	}
	return result.ErrorOrNil()
}
