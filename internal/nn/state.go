package nn

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// VarState is the serializable value of one variable.
type VarState struct {
	DType string    `json:"dtype"`
	Dims  []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

var savedDTypes = map[string]dtypes.DType{
	dtypes.Float64.String(): dtypes.Float64,
	dtypes.Float32.String(): dtypes.Float32,
	dtypes.Int64.String():   dtypes.Int64,
	dtypes.Int32.String():   dtypes.Int32,
}

// Snapshot copies the current value of v.
func Snapshot(v *context.Variable) VarState {
	t := v.MustValue()
	return VarState{
		DType: t.DType().String(),
		Dims:  tensor.Dims(t),
		Data:  tensor.Flat(t),
	}
}

func (s VarState) Tensor() (*tensors.Tensor, error) {
	dtype, ok := savedDTypes[s.DType]
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %q", s.DType)
	}
	size := 1
	for _, d := range s.Dims {
		size *= d
	}
	if size != len(s.Data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", tensor.ErrShape, len(s.Data), s.Dims)
	}
	return tensor.FromFlatAs(dtype, s.Data, s.Dims...)
}

// Load replaces the value of v with s. The shapes must match.
func Load(v *context.Variable, s VarState) error {
	if want := v.Shape().Dimensions; !slices.Equal(want, s.Dims) {
		return fmt.Errorf("%w: have %v, saved %v", tensor.ErrShape, want, s.Dims)
	}
	t, err := s.Tensor()
	if err != nil {
		return err
	}
	return exceptions.TryCatch[error](func() { v.SetValue(t) })
}

func varKey(v *context.Variable) string {
	scope := v.Scope()
	if !strings.HasSuffix(scope, context.ScopeSeparator) {
		scope += context.ScopeSeparator
	}
	return scope + v.Name()
}

// OptimizerState snapshots every variable of ctx that is not one of params:
// the moment estimates and step counters an optimizer keeps there.
func OptimizerState(ctx *context.Context, params []Param) map[string]VarState {
	owned := make(map[*context.Variable]bool, len(params))
	for _, p := range params {
		owned[p.Var] = true
	}
	state := make(map[string]VarState)
	ctx.EnumerateVariables(func(v *context.Variable) {
		if !owned[v] {
			state[varKey(v)] = Snapshot(v)
		}
	})
	return state
}

// LoadOptimizerState recreates the saved optimizer variables in ctx, or
// overwrites them when they already exist, so the next update resumes from
// the saved moments.
func LoadOptimizerState(ctx *context.Context, state map[string]VarState) error {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		i := strings.LastIndex(key, context.ScopeSeparator)
		if i < 0 {
			return fmt.Errorf("optimizer variable %q has no scope", key)
		}
		scope, name := key[:i], key[i+1:]
		if scope == "" {
			scope = context.RootScope
		}
		t, err := state[key].Tensor()
		if err != nil {
			return fmt.Errorf("optimizer variable %s: %w", key, err)
		}
		err = exceptions.TryCatch[error](func() {
			if v := ctx.GetVariableByScopeAndName(scope, name); v != nil {
				v.SetValue(t)
				return
			}
			ctx.InAbsPath(scope).VariableWithValue(name, t)
		})
		if err != nil {
			return fmt.Errorf("optimizer variable %s: %w", key, err)
		}
	}
	return nil
}
