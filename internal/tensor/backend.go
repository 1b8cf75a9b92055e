package tensor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// DType is the element type of every model graph.
const DType = dtypes.Float64

var ErrShape = errors.New("tensor: shape mismatch")

var (
	backendOnce sync.Once
	backend     backends.Backend
)

// Backend returns the process-wide backend, created on first use. The pure
// Go backend is always linked in; GOMLX_BACKEND selects another registered
// backend.
func Backend() backends.Backend {
	backendOnce.Do(func() {
		backend = backends.MustNew()
	})
	return backend
}

// GraphFn builds the outputs of a graph from its inputs. Variables are read
// and created through ctx.
type GraphFn func(ctx *context.Context, inputs []*graph.Node) []*graph.Node

// Exec is a compiled graph bound to a variable context. Variable updates made
// inside the graph (optimizer steps) persist in the context across calls.
type Exec struct {
	exec *context.Exec
}

// NewExec binds fn to ctx. The context is used unchecked so that graphs built
// for different shapes share the variables created by the first build. A nil
// ctx gets a fresh, empty context.
func NewExec(ctx *context.Context, fn GraphFn) (*Exec, error) {
	if ctx == nil {
		ctx = context.New()
	}
	var e *Exec
	err := exceptions.TryCatch[error](func() {
		exec, err := context.NewExec(Backend(), ctx.Checked(false), func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			return fn(ctx, inputs)
		})
		if err != nil {
			panic(err)
		}
		e = &Exec{exec: exec}
	})
	if err != nil {
		return nil, fmt.Errorf("tensor: build graph: %w", err)
	}
	return e, nil
}

// Call runs the graph. Arguments are tensors or Go values gomlx can convert
// (float64, []float64, [][]float64, ...).
func (e *Exec) Call(args ...any) ([]*tensors.Tensor, error) {
	var outs []*tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		res, err := e.exec.Exec(args...)
		if err != nil {
			panic(err)
		}
		outs = res
	})
	if err != nil {
		return nil, fmt.Errorf("tensor: run graph: %w", err)
	}
	return outs, nil
}

// Eval builds a one-off graph over ctx and runs it once.
func Eval(ctx *context.Context, fn func(inputs []*graph.Node) []*graph.Node, args ...any) ([]*tensors.Tensor, error) {
	e, err := NewExec(ctx, func(_ *context.Context, inputs []*graph.Node) []*graph.Node {
		return fn(inputs)
	})
	if err != nil {
		return nil, err
	}
	return e.Call(args...)
}

// ExecCache keeps a bounded number of compiled graphs by key. When full it
// starts over; keys are expected to repeat in long runs.
type ExecCache struct {
	mu    sync.Mutex
	max   int
	execs map[string]*Exec
}

func NewExecCache(max int) *ExecCache {
	if max < 1 {
		max = 1
	}
	return &ExecCache{max: max, execs: make(map[string]*Exec)}
}

// Get returns the graph cached under key, building it on a miss.
func (c *ExecCache) Get(key string, build func() (*Exec, error)) (*Exec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.execs[key]; ok {
		return e, nil
	}
	e, err := build()
	if err != nil {
		return nil, err
	}
	if len(c.execs) >= c.max {
		c.execs = make(map[string]*Exec)
	}
	c.execs[key] = e
	return e, nil
}

func (c *ExecCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.execs)
}
