package integrators

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(f Field, z, dt *Node) *Node {
	return axpy(z, f(z), dt)
}

// Midpoint is the explicit second-order midpoint rule.
type Midpoint struct{}

func NewMidpoint() *Midpoint {
	return &Midpoint{}
}

func (m *Midpoint) Step(f Field, z, dt *Node) *Node {
	half := axpy(z, f(z), MulScalar(dt, 0.5))
	return axpy(z, f(half), dt)
}
