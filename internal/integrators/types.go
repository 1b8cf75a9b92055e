package integrators

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Field is an autonomous batched vector field dz/dt = f(z) built in a graph.
// Each row of z is one independent state.
type Field func(z *Node) *Node

// Stepper advances z by one step of size dt, a scalar node.
type Stepper interface {
	Step(f Field, z, dt *Node) *Node
}

// AdaptiveStepper also estimates the local error of a step. Trial returns
// the candidate state with its scaled error norm; Propose turns the error
// norm into the next step size and whether the trial is accepted.
type AdaptiveStepper interface {
	Stepper
	Trial(f Field, z, dt *Node, rtol, atol float64) (next, errRatio *Node)
	Propose(dt, errRatio float64) (dtNext float64, accepted bool)
}

// axpy returns z + a·k for a scalar node a.
func axpy(z, k, a *Node) *Node {
	return Add(z, Mul(k, a))
}
