package tensor

import (
	"fmt"
	"reflect"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// FromFlat wraps row-major data as a float64 tensor with the given dims.
func FromFlat(data []float64, dims ...int) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

// FromRows packs equal-length rows into a [len(rows), cols] tensor.
func FromRows(rows [][]float64) *tensors.Tensor {
	if len(rows) == 0 {
		panic(fmt.Errorf("%w: no rows", ErrShape))
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			panic(fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShape, i, len(r), cols))
		}
		flat = append(flat, r...)
	}
	return FromFlat(flat, len(rows), cols)
}

// FromFlatAs builds a tensor of the named dtype from float64 data. Checkpoints
// store every variable this way, including the integer step counters the
// optimizer keeps.
func FromFlatAs(dtype dtypes.DType, data []float64, dims ...int) (*tensors.Tensor, error) {
	switch dtype {
	case dtypes.Float64:
		return FromFlat(append([]float64(nil), data...), dims...), nil
	case dtypes.Float32:
		return tensors.FromFlatDataAndDimensions(convert[float32](data), dims...), nil
	case dtypes.Int64:
		return tensors.FromFlatDataAndDimensions(convert[int64](data), dims...), nil
	case dtypes.Int32:
		return tensors.FromFlatDataAndDimensions(convert[int32](data), dims...), nil
	}
	return nil, fmt.Errorf("tensor: unsupported dtype %s", dtype)
}

func convert[T float32 | int32 | int64](data []float64) []T {
	out := make([]T, len(data))
	for i, v := range data {
		out[i] = T(v)
	}
	return out
}

func Dims(t *tensors.Tensor) []int {
	return append([]int(nil), t.Shape().Dimensions...)
}

// Flat copies t into a row-major float64 slice.
func Flat(t *tensors.Tensor) []float64 {
	var out []float64
	flatten(reflect.ValueOf(t.Value()), &out)
	return out
}

func flatten(v reflect.Value, out *[]float64) {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			flatten(v.Index(i), out)
		}
	case reflect.Float32, reflect.Float64:
		*out = append(*out, v.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*out = append(*out, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*out = append(*out, float64(v.Uint()))
	case reflect.Bool:
		if v.Bool() {
			*out = append(*out, 1)
		} else {
			*out = append(*out, 0)
		}
	}
}

// Item returns the single value of a scalar (or one-element) tensor.
func Item(t *tensors.Tensor) float64 {
	flat := Flat(t)
	if len(flat) != 1 {
		panic(fmt.Errorf("%w: %v is not a scalar", ErrShape, t.Shape().Dimensions))
	}
	return flat[0]
}

// Rows copies a rank-2 tensor into one slice per row.
func Rows(t *tensors.Tensor) [][]float64 {
	dims := t.Shape().Dimensions
	if len(dims) != 2 {
		panic(fmt.Errorf("%w: Rows of rank %d tensor", ErrShape, len(dims)))
	}
	return split(Flat(t), dims[0], dims[1])
}

// Blocks copies a rank-3 tensor [a, b, c] into a [a][b][c] slice.
func Blocks(t *tensors.Tensor) [][][]float64 {
	dims := t.Shape().Dimensions
	if len(dims) != 3 {
		panic(fmt.Errorf("%w: Blocks of rank %d tensor", ErrShape, len(dims)))
	}
	flat := Flat(t)
	out := make([][][]float64, dims[0])
	step := dims[1] * dims[2]
	for i := range out {
		out[i] = split(flat[i*step:(i+1)*step], dims[1], dims[2])
	}
	return out
}

func split(flat []float64, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for r := range out {
		out[r] = flat[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return out
}
