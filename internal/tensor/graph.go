package tensor

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/graph"
)

// Col returns column j of a [rows, cols] node as [rows, 1].
func Col(x *graph.Node, j int) *graph.Node {
	return Cols(x, j, j+1)
}

// Cols returns columns [from, to) of a [rows, cols] node.
func Cols(x *graph.Node, from, to int) *graph.Node {
	if x.Rank() != 2 {
		panic(fmt.Errorf("%w: Cols of rank %d node", ErrShape, x.Rank()))
	}
	return graph.Slice(x, graph.AxisRange(), graph.AxisRange(from, to))
}

// HCat joins [rows, *] nodes along the feature axis.
func HCat(xs ...*graph.Node) *graph.Node {
	return graph.Concatenate(xs, 1)
}

// Expand broadcasts x to the shape of like. Axes of size one in x stretch.
func Expand(x, like *graph.Node) *graph.Node {
	return graph.BroadcastToDims(x, like.Shape().Dimensions...)
}

// RowNorm is the Euclidean norm of each row of a [rows, cols] node, as
// [rows, 1].
func RowNorm(x *graph.Node) *graph.Node {
	return graph.Sqrt(graph.ReduceAndKeep(graph.Square(x), graph.ReduceSum, -1))
}

// Const64 is a float64 scalar constant in the graph of like.
func Const64(like *graph.Node, v float64) *graph.Node {
	return graph.Scalar(like.Graph(), DType, v)
}

// Shape0 is the size of the leading axis.
func Shape0(x *graph.Node) int {
	return x.Shape().Dimensions[0]
}
