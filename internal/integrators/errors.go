package integrators

import "errors"

var (
	// ErrUnknownSolver indicates a solver name outside the registry.
	ErrUnknownSolver = errors.New("integrators: unknown solver")

	// ErrTimeGrid indicates an empty or non-ascending evaluation grid.
	ErrTimeGrid = errors.New("integrators: evaluation times must be non-empty and strictly ascending")

	// ErrTooManySteps indicates the adaptive solver exceeded its step budget.
	ErrTooManySteps = errors.New("integrators: adaptive step budget exhausted")
)
