// Package render draws a learned content image at an arbitrary angle using
// a differentiable spatial transformer.
package render

import (
	"fmt"
	"math"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// ThetaInv builds one inverse affine matrix per row from cos, sin [N, 1]
// and a translation (x, y):
//
//	[[c, -s, -x c + y s],
//	 [s,  c, -x s - y c]]
func ThetaInv(cos, sin *Node, x, y float64) *Node {
	return tensor.HCat(
		cos,
		Neg(sin),
		Add(MulScalar(cos, -x), MulScalar(sin, y)),
		sin,
		cos,
		Sub(MulScalar(sin, -x), MulScalar(cos, y)),
	)
}

// Renderer rotates square Size×Size images.
type Renderer struct {
	Size int
}

func New(size int) *Renderer {
	return &Renderer{Size: size}
}

// Render samples content ([1, d*d] shared, or [N, d*d]) through the
// rotation encoded by q [N, 2] = (cos, sin) and returns [N, d*d].
func (r *Renderer) Render(content, q *Node) *Node {
	d := r.Size
	if q.Rank() != 2 || q.Shape().Dimensions[1] != 2 {
		panic(fmt.Errorf("%w: render angle has shape %v", tensor.ErrShape, q.Shape().Dimensions))
	}
	theta := ThetaInv(tensor.Col(q, 0), tensor.Col(q, 1), 0, 0)
	gx, gy := AffineGrid(theta, d, d)
	return GridSample(content, gx, gy, d, d)
}

// RenderAngles renders a host content row at plain angles in radians.
func (r *Renderer) RenderAngles(content []float64, angles []float64) ([][]float64, error) {
	d := r.Size
	if len(content) != d*d {
		return nil, fmt.Errorf("%w: content has %d pixels, expected %d", tensor.ErrShape, len(content), d*d)
	}
	q := make([][]float64, len(angles))
	for i, a := range angles {
		q[i] = []float64{math.Cos(a), math.Sin(a)}
	}
	outs, err := tensor.Eval(context.New(), func(in []*Node) []*Node {
		return []*Node{r.Render(in[0], in[1])}
	}, tensor.FromFlat(content, 1, d*d), tensor.FromRows(q))
	if err != nil {
		return nil, err
	}
	return tensor.Rows(outs[0]), nil
}
