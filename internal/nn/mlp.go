package nn

import (
	"fmt"
	"math/rand"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// Activation is an elementwise nonlinearity whose derivative is built from
// graph ops, so input gradients stay differentiable.
type Activation interface {
	Name() string
	Apply(x *Node) *Node
	// Deriv returns f'(pre) given the pre-activation and f(pre).
	Deriv(pre, post *Node) *Node
}

type TanhAct struct{}

func (TanhAct) Name() string        { return "tanh" }
func (TanhAct) Apply(x *Node) *Node { return Tanh(x) }
func (TanhAct) Deriv(pre, post *Node) *Node {
	return OneMinus(Square(post))
}

// ELUAct is the exponential linear unit with alpha 1. The negative branch
// evaluates exp on min(x, 0) so the unselected side of Where never overflows.
type ELUAct struct{}

func (ELUAct) Name() string { return "elu" }
func (ELUAct) Apply(x *Node) *Node {
	zero := ZerosLike(x)
	return Where(GreaterThan(x, zero), x, AddScalar(Exp(Min(x, zero)), -1))
}
func (ELUAct) Deriv(pre, post *Node) *Node {
	return Where(GreaterThan(pre, ZerosLike(pre)), OnesLike(pre), AddScalar(post, 1))
}

func ActivationByName(name string) (Activation, error) {
	switch name {
	case "tanh":
		return TanhAct{}, nil
	case "elu":
		return ELUAct{}, nil
	}
	return nil, fmt.Errorf("unknown activation: %s", name)
}

// MLP is a three-layer perceptron. Layers live in the linear1..linear3
// sub-scopes of its context.
type MLP struct {
	L1, L2, L3 *Linear
	Act        Activation
}

func NewMLP(ctx *context.Context, in, hidden, out int, act Activation, rng *rand.Rand) *MLP {
	return &MLP{
		L1:  NewLinear(ctx.In("linear1"), in, hidden, rng),
		L2:  NewLinear(ctx.In("linear2"), hidden, hidden, rng),
		L3:  NewLinear(ctx.In("linear3"), hidden, out, rng),
		Act: act,
	}
}

func (m *MLP) Apply(x *Node) *Node {
	h := m.Act.Apply(m.L1.Apply(x))
	h = m.Act.Apply(m.L2.Apply(h))
	return m.L3.Apply(h)
}

// ValueAndGrad returns the scalar output y [bs, 1] and dy/dx [bs, in]. The
// gradient is an explicit chain of graph ops rather than a Gradient call, so
// a loss over it can itself be differentiated.
func (m *MLP) ValueAndGrad(x *Node) (*Node, *Node) {
	if m.L3.Out != 1 {
		panic(fmt.Errorf("%w: ValueAndGrad needs a scalar output, have %d", tensor.ErrShape, m.L3.Out))
	}
	g := x.Graph()
	p1 := m.L1.Apply(x)
	h1 := m.Act.Apply(p1)
	p2 := m.L2.Apply(h1)
	h2 := m.Act.Apply(p2)
	y := m.L3.Apply(h2)

	w3 := Reshape(m.L3.W.ValueGraph(g), 1, m.L3.In)
	g2 := Mul(m.Act.Deriv(p2, h2), tensor.Expand(w3, h2))
	g1 := Mul(Einsum("bh,kh->bk", g2, m.L2.W.ValueGraph(g)), m.Act.Deriv(p1, h1))
	return y, Einsum("bk,ik->bi", g1, m.L1.W.ValueGraph(g))
}

func (m *MLP) Params(prefix string) []Param {
	ps := m.L1.Params(prefix + "linear1.")
	ps = append(ps, m.L2.Params(prefix+"linear2.")...)
	return append(ps, m.L3.Params(prefix+"linear3.")...)
}

// PSD outputs a strictly positive scalar o² + 0.1, used as an inverse mass.
type PSD struct {
	Net *MLP
}

const psdFloor = 0.1

func NewPSD(ctx *context.Context, in, hidden int, act Activation, rng *rand.Rand) *PSD {
	return &PSD{Net: NewMLP(ctx, in, hidden, 1, act, rng)}
}

func (p *PSD) Apply(x *Node) *Node {
	return AddScalar(Square(p.Net.Apply(x)), psdFloor)
}

func (p *PSD) ValueAndGrad(x *Node) (*Node, *Node) {
	o, do := p.Net.ValueAndGrad(x)
	return AddScalar(Square(o), psdFloor), Mul(tensor.Expand(MulScalar(o, 2), do), do)
}

func (p *PSD) Params(prefix string) []Param { return p.Net.Params(prefix) }

// Encoder is a four-layer perceptron with residual hidden blocks.
type Encoder struct {
	L1, L2, L3, L4 *Linear
	Act            Activation
}

func NewEncoder(ctx *context.Context, in, hidden, out int, act Activation, rng *rand.Rand) *Encoder {
	return &Encoder{
		L1:  NewLinear(ctx.In("linear1"), in, hidden, rng),
		L2:  NewLinear(ctx.In("linear2"), hidden, hidden, rng),
		L3:  NewLinear(ctx.In("linear3"), hidden, hidden, rng),
		L4:  NewLinear(ctx.In("linear4"), hidden, out, rng),
		Act: act,
	}
}

func (e *Encoder) Apply(x *Node) *Node {
	h := e.Act.Apply(e.L1.Apply(x))
	h = Add(h, e.Act.Apply(e.L2.Apply(h)))
	h = Add(h, e.Act.Apply(e.L3.Apply(h)))
	return e.L4.Apply(h)
}

func (e *Encoder) Params(prefix string) []Param {
	ps := e.L1.Params(prefix + "linear1.")
	ps = append(ps, e.L2.Params(prefix+"linear2.")...)
	ps = append(ps, e.L3.Params(prefix+"linear3.")...)
	return append(ps, e.L4.Params(prefix+"linear4.")...)
}
