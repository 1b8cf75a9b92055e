// Package lag implements a learned Lagrangian vector field for a single
// angle coordinate embedded on the unit circle as (cos q, sin q).
package lag

import (
	"math/rand"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/nn"
	"github.com/san-kum/lagdyn/internal/tensor"
)

// Net learns an inverse mass m⁻¹(q), a potential V(q) and an input gain g(q).
type Net struct {
	M *nn.PSD
	V *nn.MLP
	G *nn.MLP

	ctx *context.Context
}

// New creates the three networks in the M_net, V_net and g_net scopes of ctx.
func New(ctx *context.Context, hidden int, act nn.Activation, rng *rand.Rand) *Net {
	return &Net{
		M:   nn.NewPSD(ctx.In("M_net"), 2, hidden, act, rng),
		V:   nn.NewMLP(ctx.In("V_net"), 2, hidden, 1, act, rng),
		G:   nn.NewMLP(ctx.In("g_net"), 2, hidden, 1, act, rng),
		ctx: ctx,
	}
}

// Context holds the variables of the three networks.
func (n *Net) Context() *context.Context { return n.ctx }

func (n *Net) Params(prefix string) []nn.Param {
	ps := n.M.Params(prefix + "M_net.")
	ps = append(ps, n.V.Params(prefix+"V_net.")...)
	return append(ps, n.G.Params(prefix+"g_net.")...)
}

// angleGrad maps a gradient wrt (cos q, sin q) to d/dq.
func angleGrad(d, cos, sin *Node) *Node {
	return Sub(Mul(tensor.Col(d, 1), cos), Mul(tensor.Col(d, 0), sin))
}

// Derive evaluates dz/dt for z = (cos q, sin q, q_dot, u) rows. The control
// column is held constant.
func (n *Net) Derive(z *Node) *Node {
	cos, sin := tensor.Col(z, 0), tensor.Col(z, 1)
	qdot, u := tensor.Col(z, 2), tensor.Col(z, 3)
	q := tensor.HCat(cos, sin)

	mInv, dmInv := n.M.ValueAndGrad(q)
	_, dV := n.V.ValueAndGrad(q)
	g := n.G.Apply(q)

	dVdq := angleGrad(dV, cos, sin)
	dmInvdq := angleGrad(dmInv, cos, sin)

	// With L = ½ m q̇² − V and m = 1/m⁻¹:
	// q̈ = m⁻¹(g u − V') + ½ (m⁻¹'/m⁻¹) q̇²
	force := Mul(mInv, Sub(Mul(g, u), dVdq))
	coriolis := MulScalar(Mul(Div(dmInvdq, mInv), Square(qdot)), 0.5)
	qddot := Add(force, coriolis)

	return tensor.HCat(
		Neg(Mul(sin, qdot)),
		Mul(cos, qdot),
		qddot,
		ZerosLike(u),
	)
}

// Energy returns ½ m q̇² + V(q) per row as [rows, 1].
func (n *Net) Energy(z *Node) *Node {
	q := tensor.Cols(z, 0, 2)
	qdot := tensor.Col(z, 2)
	kinetic := MulScalar(Div(Square(qdot), n.M.Apply(q)), 0.5)
	return Add(kinetic, n.V.Apply(q))
}

// Energies evaluates Energy on a host [rows, 4] state tensor.
func (n *Net) Energies(z *tensors.Tensor) ([]float64, error) {
	outs, err := tensor.Eval(n.ctx, func(in []*Node) []*Node {
		return []*Node{n.Energy(in[0])}
	}, z)
	if err != nil {
		return nil, err
	}
	return tensor.Flat(outs[0]), nil
}
