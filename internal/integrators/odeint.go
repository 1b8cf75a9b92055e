package integrators

import (
	"fmt"
	"strconv"
	"strings"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// Options tune the adaptive solvers; fixed-step solvers ignore them.
type Options struct {
	RTol     float64
	ATol     float64
	MaxSteps int
}

func DefaultOptions() Options {
	return Options{RTol: 1e-7, ATol: 1e-9, MaxSteps: 10000}
}

// Plan lists the accepted step sizes of every grid interval. Fixed-step
// solvers take one step per interval; adaptive ones as many as their error
// control accepted.
type Plan [][]float64

// FixedPlan takes a single step across each interval of tEval.
func FixedPlan(tEval []float64) Plan {
	p := make(Plan, 0, len(tEval))
	for i := 1; i < len(tEval); i++ {
		p = append(p, []float64{tEval[i] - tEval[i-1]})
	}
	return p
}

// Steps flattens the plan in integration order.
func (p Plan) Steps() []float64 {
	var out []float64
	for _, interval := range p {
		out = append(out, interval...)
	}
	return out
}

// Key identifies the graph structure the plan unrolls to: the number of
// steps per interval. Plans with equal keys share a compiled graph.
func (p Plan) Key() string {
	parts := make([]string, len(p))
	for i, interval := range p {
		parts[i] = strconv.Itoa(len(interval))
	}
	return strings.Join(parts, ",")
}

// DtsTensor packs the plan's step sizes as the [steps] input Integrate reads.
func (p Plan) DtsTensor() *tensors.Tensor {
	steps := p.Steps()
	if len(steps) == 0 {
		steps = []float64{0}
	}
	return tensor.FromFlat(steps, len(steps))
}

func checkGrid(tEval []float64) error {
	if len(tEval) == 0 {
		return ErrTimeGrid
	}
	for i := 1; i < len(tEval); i++ {
		if !(tEval[i] > tEval[i-1]) {
			return fmt.Errorf("%w: t[%d]=%g after t[%d]=%g", ErrTimeGrid, i, tEval[i], i-1, tEval[i-1])
		}
	}
	return nil
}

// trialer evaluates one trial step on the host. try returns the error ratio
// of an adaptive trial; commit makes the last trial the current state.
type trialer interface {
	try(dt float64) (float64, error)
	commit()
}

// schedule walks tEval with stepper, calling reached after every grid time
// and returning the accepted steps.
func schedule(tEval []float64, stepper Stepper, opts Options, run trialer, reached func()) (Plan, error) {
	plan := make(Plan, 0, len(tEval))
	adaptive, isAdaptive := stepper.(AdaptiveStepper)
	dt := 0.0
	steps := 0
	for i := 1; i < len(tEval); i++ {
		t0, t1 := tEval[i-1], tEval[i]
		if !isAdaptive {
			if _, err := run.try(t1 - t0); err != nil {
				return plan, err
			}
			run.commit()
			plan = append(plan, []float64{t1 - t0})
			reached()
			continue
		}

		if dt <= 0 {
			dt = t1 - t0
		}
		var accepted []float64
		t := t0
		for t < t1 {
			if steps >= opts.MaxSteps {
				return plan, fmt.Errorf("%w: %d steps before t=%g", ErrTooManySteps, steps, t1)
			}
			h := dt
			last := false
			if t+h >= t1 {
				h = t1 - t
				last = true
			}
			ratio, err := run.try(h)
			if err != nil {
				return plan, err
			}
			proposal, ok := adaptive.Propose(h, ratio)
			steps++
			if ok {
				run.commit()
				accepted = append(accepted, h)
				if last {
					t = t1
				} else {
					t += h
				}
			}
			dt = proposal
		}
		plan = append(plan, accepted)
		reached()
	}
	return plan, nil
}

// Runner is a compiled single step of a field, reused across integrations
// of same-shaped states.
type Runner struct {
	exec    *tensor.Exec
	stepper Stepper
	opts    Options
}

// NewRunner compiles one step of f with stepper. f reads its variables from
// ctx; a nil ctx is fine for fields without any.
func NewRunner(ctx *context.Context, f Field, stepper Stepper, opts Options) (*Runner, error) {
	adaptive, isAdaptive := stepper.(AdaptiveStepper)
	exec, err := tensor.NewExec(ctx, func(_ *context.Context, in []*Node) []*Node {
		z, dt := in[0], in[1]
		if isAdaptive {
			next, ratio := adaptive.Trial(f, z, dt, opts.RTol, opts.ATol)
			return []*Node{next, ratio}
		}
		return []*Node{stepper.Step(f, z, dt)}
	})
	if err != nil {
		return nil, err
	}
	return &Runner{exec: exec, stepper: stepper, opts: opts}, nil
}

func (r *Runner) Stepper() Stepper { return r.stepper }

// Solve returns the state at every time of tEval, starting with z0. On
// failure the states reached so far are returned with the error.
func (r *Runner) Solve(z0 *tensors.Tensor, tEval []float64) ([]*tensors.Tensor, error) {
	if err := checkGrid(tEval); err != nil {
		return nil, err
	}
	w := &walk{exec: r.exec, z: z0}
	traj := make([]*tensors.Tensor, 1, len(tEval))
	traj[0] = z0
	_, err := schedule(tEval, r.stepper, r.opts, w, func() { traj = append(traj, w.z) })
	return traj, err
}

// Plan chooses the steps an integration from z0 over tEval takes, without
// keeping the states. Fixed-step solvers need no evaluation.
func (r *Runner) Plan(z0 *tensors.Tensor, tEval []float64) (Plan, error) {
	if err := checkGrid(tEval); err != nil {
		return nil, err
	}
	if _, ok := r.stepper.(AdaptiveStepper); !ok {
		return FixedPlan(tEval), nil
	}
	return schedule(tEval, r.stepper, r.opts, &walk{exec: r.exec, z: z0}, func() {})
}

// walk is the host state of one integration.
type walk struct {
	exec    *tensor.Exec
	z, next *tensors.Tensor
}

func (w *walk) try(dt float64) (float64, error) {
	outs, err := w.exec.Call(w.z, dt)
	if err != nil {
		return 0, err
	}
	w.next = outs[0]
	if len(outs) > 1 {
		return tensor.Item(outs[1]), nil
	}
	return 0, nil
}

func (w *walk) commit() { w.z = w.next }

// Odeint integrates f from z0 over tEval with the named solver and returns
// the state at every evaluation time; the first entry is z0 itself. f reads
// its variables from ctx. On failure the states reached so far are returned
// with the error.
func Odeint(ctx *context.Context, f Field, z0 *tensors.Tensor, tEval []float64, method string, opts Options) ([]*tensors.Tensor, error) {
	stepper, err := Default.Get(method)
	if err != nil {
		return nil, err
	}
	return Solve(ctx, f, z0, tEval, stepper, opts)
}

// Solve is Odeint with an already constructed stepper. Fixed-step solvers
// take exactly one step per grid interval.
func Solve(ctx *context.Context, f Field, z0 *tensors.Tensor, tEval []float64, stepper Stepper, opts Options) ([]*tensors.Tensor, error) {
	if err := checkGrid(tEval); err != nil {
		return nil, err
	}
	r, err := NewRunner(ctx, f, stepper, opts)
	if err != nil {
		return nil, err
	}
	return r.Solve(z0, tEval)
}

// PlanSteps is Runner.Plan for a one-off integration.
func PlanSteps(ctx *context.Context, f Field, z0 *tensors.Tensor, tEval []float64, stepper Stepper, opts Options) (Plan, error) {
	if err := checkGrid(tEval); err != nil {
		return nil, err
	}
	if _, ok := stepper.(AdaptiveStepper); !ok {
		return FixedPlan(tEval), nil
	}
	r, err := NewRunner(ctx, f, stepper, opts)
	if err != nil {
		return nil, err
	}
	return r.Plan(z0, tEval)
}

// Integrate unrolls stepper along plan inside a graph. dts is the [steps]
// node fed from plan.DtsTensor. The result holds one state per grid time,
// starting with z0, and is differentiable end to end.
func Integrate(f Field, z0, dts *Node, plan Plan, stepper Stepper) []*Node {
	traj := make([]*Node, 1, len(plan)+1)
	traj[0] = z0
	z := z0
	k := 0
	for _, interval := range plan {
		for range interval {
			dt := Reshape(Slice(dts, AxisRange(k, k+1)))
			z = stepper.Step(f, z, dt)
			k++
		}
		traj = append(traj, z)
	}
	return traj
}
