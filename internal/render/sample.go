package render

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// AffineGrid maps every output pixel of an h×w image through theta [N, 6]
// and returns the normalized source coordinates gx, gy [N, h*w]. Pixel
// centers sit at (2j+1)/w - 1, matching align_corners=False.
func AffineGrid(theta *Node, h, w int) (gx, gy *Node) {
	n := tensor.Shape0(theta)
	xs := make([]float64, h*w)
	ys := make([]float64, h*w)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			xs[i*w+j] = float64(2*j+1)/float64(w) - 1
			ys[i*w+j] = float64(2*i+1)/float64(h) - 1
		}
	}
	g := theta.Graph()
	base := func(v []float64) *Node {
		return BroadcastToDims(Const(g, [][]float64{v}), n, h*w)
	}
	x, y := base(xs), base(ys)
	coef := func(k int) *Node {
		return BroadcastToDims(tensor.Col(theta, k), n, h*w)
	}
	gx = Add(Add(Mul(coef(0), x), Mul(coef(1), y)), coef(2))
	gy = Add(Add(Mul(coef(3), x), Mul(coef(4), y)), coef(5))
	return gx, gy
}

// GridSample bilinearly samples input [R, h*w] at the normalized coordinates
// gx, gy [N, h*w] with zero padding outside the image. R is either N or 1;
// a single input row is shared by every output row. Gradients flow to both
// the input and the coordinates.
func GridSample(input, gx, gy *Node, h, w int) *Node {
	g := gx.Graph()
	dims := gx.Shape().Dimensions
	n, hw := dims[0], dims[1]
	rows := tensor.Shape0(input)
	if rows != 1 && rows != n {
		panic(fmt.Errorf("%w: %d input rows for %d grids", tensor.ErrShape, rows, n))
	}
	if input.Shape().Dimensions[1] != h*w {
		panic(fmt.Errorf("%w: input has %d pixels, expected %d", tensor.ErrShape, input.Shape().Dimensions[1], h*w))
	}

	ix := MulScalar(AddScalar(MulScalar(AddScalar(gx, 1), float64(w)), -1), 0.5)
	iy := MulScalar(AddScalar(MulScalar(AddScalar(gy, 1), float64(h)), -1), 0.5)
	x0 := StopGradient(Floor(ix))
	y0 := StopGradient(Floor(iy))
	x1 := AddScalar(x0, 1)
	y1 := AddScalar(y0, 1)
	wx1 := Sub(ix, x0)
	wy1 := Sub(iy, y0)
	wx0 := OneMinus(wx1)
	wy0 := OneMinus(wy1)

	flat := Reshape(input, rows*hw, 1)
	offset := ZerosLike(gx)
	if rows > 1 {
		offset = MulScalar(Iota(g, shapes.Make(tensor.DType, n, hw), 0), float64(hw))
	}
	zero := ZerosLike(gx)
	one := OnesLike(gx)
	mask := func(cond *Node) *Node { return Where(cond, one, zero) }
	inside := func(v *Node, size int) *Node {
		lo := mask(GreaterOrEqual(v, zero))
		hi := mask(LessOrEqual(v, AddScalar(zero, float64(size-1))))
		return Mul(lo, hi)
	}
	clamp := func(v *Node, size int) *Node {
		return Min(Max(v, zero), AddScalar(zero, float64(size-1)))
	}
	corner := func(xc, yc, wt *Node) *Node {
		valid := Mul(inside(xc, w), inside(yc, h))
		idx := Add(offset, Add(MulScalar(clamp(yc, h), float64(w)), clamp(xc, w)))
		idx = Reshape(ConvertDType(StopGradient(idx), dtypes.Int32), n, hw, 1)
		vals := Reshape(Gather(flat, idx), n, hw)
		return Mul(Mul(valid, wt), vals)
	}

	out := corner(x0, y0, Mul(wx0, wy0))
	out = Add(out, corner(x1, y0, Mul(wx1, wy0)))
	out = Add(out, corner(x0, y1, Mul(wx0, wy1)))
	return Add(out, corner(x1, y1, Mul(wx1, wy1)))
}
