package integrators

import (
	"math"

	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Dormand-Prince coefficients (RK45)
var (
	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// combine returns z + dt·Σ coef[i]·ks[i], skipping zero coefficients.
func combine(z, dt *Node, coef []float64, ks []*Node) *Node {
	out := z
	for i, c := range coef {
		if c != 0 {
			out = axpy(out, ks[i], MulScalar(dt, c))
		}
	}
	return out
}

// stages returns the six Dormand-Prince stages and the fifth-order update.
func stages(f Field, z, dt *Node) ([]*Node, *Node) {
	k1 := f(z)
	k2 := f(combine(z, dt, []float64{b21}, []*Node{k1}))
	k3 := f(combine(z, dt, []float64{b31, b32}, []*Node{k1, k2}))
	k4 := f(combine(z, dt, []float64{b41, b42, b43}, []*Node{k1, k2, k3}))
	k5 := f(combine(z, dt, []float64{b51, b52, b53, b54}, []*Node{k1, k2, k3, k4}))
	k6 := f(combine(z, dt, []float64{b61, b62, b63, b64, b65}, []*Node{k1, k2, k3, k4, k5}))

	ks := []*Node{k1, k2, k3, k4, k5, k6}
	return ks, combine(z, dt, []float64{c1, 0, c3, c4, c5, c6}, ks)
}

func (r *RK45) Step(f Field, z, dt *Node) *Node {
	_, next := stages(f, z, dt)
	return next
}

// Trial takes one fifth-order step and returns it with the RMS of the
// embedded error estimate scaled by atol + rtol·max(|z|, |next|).
func (r *RK45) Trial(f Field, z, dt *Node, rtol, atol float64) (*Node, *Node) {
	ks, zNew := stages(f, z, dt)
	k7 := f(zNew)

	errEst := combine(ZerosLike(z), dt, []float64{dc1, 0, dc3, dc4, dc5, dc6, dc7}, append(ks, k7))
	scale := AddScalar(MulScalar(Max(Abs(z), Abs(zNew)), rtol), atol)
	ratio := Sqrt(ReduceAllMean(Square(Div(errEst, scale))))
	return zNew, ratio
}

// Propose scales dt by the usual safety-factored power of the error ratio,
// clamped to [minScale, maxScale]. A NaN ratio rejects the step and shrinks
// it as far as allowed.
func (r *RK45) Propose(dt, errRatio float64) (float64, bool) {
	var dtNew float64
	switch {
	case math.IsNaN(errRatio):
		dtNew = dt * r.minScale
	case errRatio > 1:
		dtNew = dt * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	case errRatio > 0:
		dtNew = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		dtNew = dt * r.maxScale
	}
	return dtNew, errRatio <= 1
}
