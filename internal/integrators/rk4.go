package integrators

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(f Field, z, dt *Node) *Node {
	half := MulScalar(dt, 0.5)
	k1 := f(z)
	k2 := f(axpy(z, k1, half))
	k3 := f(axpy(z, k2, half))
	k4 := f(axpy(z, k3, dt))

	sum := Add(Add(k1, MulScalar(k2, 2)), Add(MulScalar(k3, 2), k4))
	return axpy(z, sum, DivScalar(dt, 6))
}
