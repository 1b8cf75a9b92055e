package nn

import (
	"math"
	"math/rand"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// Param is a named trainable variable.
type Param struct {
	Name string
	Var  *context.Variable
}

// Module is anything carrying trainable parameters.
type Module interface {
	Params(prefix string) []Param
}

// Vars strips the names off a parameter list.
func Vars(ps []Param) []*context.Variable {
	out := make([]*context.Variable, len(ps))
	for i, p := range ps {
		out[i] = p.Var
	}
	return out
}

// Linear computes x·W + b with W [in, out] and b [1, out]. Its variables
// live in the scope of the context it was created with.
type Linear struct {
	W, B    *context.Variable
	In, Out int
}

func NewLinear(ctx *context.Context, in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	b := make([]float64, out)
	for i := range b {
		b[i] = (2*rng.Float64() - 1) * bound
	}
	return &Linear{
		W:   ctx.VariableWithValue("weight", tensor.FromFlat(Orthogonal(in, out, rng), in, out)),
		B:   ctx.VariableWithValue("bias", tensor.FromFlat(b, 1, out)),
		In:  in,
		Out: out,
	}
}

func (l *Linear) Apply(x *Node) *Node {
	g := x.Graph()
	y := Einsum("bi,io->bo", x, l.W.ValueGraph(g))
	return Add(y, tensor.Expand(l.B.ValueGraph(g), y))
}

func (l *Linear) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + "weight", Var: l.W},
		{Name: prefix + "bias", Var: l.B},
	}
}

// Orthogonal returns a rows×cols matrix (row-major) with orthonormal columns
// or rows, whichever is the shorter side, drawn from the QR factorization of
// a Gaussian matrix.
func Orthogonal(rows, cols int, rng *rand.Rand) []float64 {
	m, n := rows, cols
	transposed := false
	if m < n {
		m, n = n, m
		transposed = true
	}

	g := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			g.Set(i, j, rng.NormFloat64())
		}
	}

	var qr mat.QR
	qr.Factorize(g)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	out := make([]float64, rows*cols)
	for j := 0; j < n; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < m; i++ {
			v := sign * q.At(i, j)
			if transposed {
				out[j*cols+i] = v
			} else {
				out[i*cols+j] = v
			}
		}
	}
	return out
}
