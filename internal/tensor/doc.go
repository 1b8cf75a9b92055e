// Package tensor bridges the rest of the module to gomlx.
//
// Models are built as gomlx computation graphs over float64 nodes. Batches
// live along the leading axis, features along the last one; images are
// flattened into a single feature row.
//
//   - [Backend]: the shared backend every graph runs on
//   - [NewExec]: compiles a graph over a variable context and runs it,
//     turning panics raised while building or executing into errors
//   - [FromFlat], [FromRows], [Flat], [Rows], [Blocks]: host conversions
//   - [Col], [Cols], [HCat], [Expand], [RowNorm]: small graph helpers
//
// # Example
//
//	exec, err := tensor.NewExec(ctx, func(ctx *context.Context, in []*graph.Node) []*graph.Node {
//		return []*graph.Node{graph.ReduceAllSum(graph.Square(in[0]))}
//	})
//	outs, err := exec.Call(tensor.FromFlat([]float64{3, 4}, 1, 2))
//	// tensor.Item(outs[0]) == 25
//
// Shape mismatches found while building a graph are programming errors and
// panic with [ErrShape]; [Exec.Call] reports them as errors.
package tensor
