package integrators

import (
	"fmt"
	"sort"
)

// Registry maps solver names to constructors.
type Registry struct {
	solvers map[string]func() Stepper
}

// Default holds the built-in solvers.
var Default = NewRegistry()

func NewRegistry() *Registry {
	r := &Registry{solvers: make(map[string]func() Stepper)}

	r.solvers["euler"] = func() Stepper { return NewEuler() }
	r.solvers["midpoint"] = func() Stepper { return NewMidpoint() }
	r.solvers["rk4"] = func() Stepper { return NewRK4() }
	r.solvers["dopri5"] = func() Stepper { return NewRK45() }
	r.solvers["rk45"] = func() Stepper { return NewRK45() }

	return r
}

func (r *Registry) Register(name string, fn func() Stepper) {
	r.solvers[name] = fn
}

func (r *Registry) Get(name string) (Stepper, error) {
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownSolver, name, r.Names())
	}
	return fn(), nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.solvers[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
