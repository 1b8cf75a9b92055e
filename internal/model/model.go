// Package model wires the angle encoder, the Lagrangian latent dynamics and
// the rotating content decoder into one differentiable pipeline.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/integrators"
	"github.com/san-kum/lagdyn/internal/lag"
	"github.com/san-kum/lagdyn/internal/nn"
	"github.com/san-kum/lagdyn/internal/render"
	"github.com/san-kum/lagdyn/internal/tensor"
)

// normPenaltyWeight scales the soft pull of ||q0|| toward 1.
const normPenaltyWeight = 1.0 / 100

// maxGraphs bounds the compiled evaluation graphs kept per model. Adaptive
// solvers produce a new graph whenever the step count of an interval
// changes.
const maxGraphs = 16

// ErrStateDict indicates a parameter set that does not fit the model.
var ErrStateDict = errors.New("model: state dict mismatch")

type Model struct {
	Encoder  *nn.Encoder
	Obs      *nn.Encoder
	ODE      *lag.Net
	Renderer *render.Renderer
	Size     int

	ctx        *context.Context
	solverOpts integrators.Options
	execs      *tensor.ExecCache
	runners    map[string]*integrators.Runner
}

// Forward holds the nodes of one forward pass.
type Forward struct {
	Q0, Q0n, Q1n *Node
	QDot0        *Node
	Traj         []*Node
	Content      *Node
	// Xrec is [T, bs, d*d].
	Xrec *Node
}

type Loss struct {
	Recon       *Node
	NormPenalty *Node
	Total       *Node
}

// New creates every network in a fresh variable context, under the
// recog_q_net, obs_net and ode scopes.
func New(mc config.ModelConfig, size int, rng *rand.Rand) (*Model, error) {
	encAct, err := nn.ActivationByName(mc.EncoderActivation)
	if err != nil {
		return nil, err
	}
	dynAct, err := nn.ActivationByName(mc.DynamicsActivation)
	if err != nil {
		return nil, err
	}
	ctx := context.New()
	d2 := size * size
	return &Model{
		Encoder:    nn.NewEncoder(ctx.In("recog_q_net"), d2, mc.EncoderHidden, 2, encAct, rng),
		Obs:        nn.NewEncoder(ctx.In("obs_net"), 1, mc.ContentHidden, d2, encAct, rng),
		ODE:        lag.New(ctx.In("ode"), mc.DynamicsHidden, dynAct, rng),
		Renderer:   render.New(size),
		Size:       size,
		ctx:        ctx,
		solverOpts: integrators.DefaultOptions(),
		execs:      tensor.NewExecCache(maxGraphs),
		runners:    make(map[string]*integrators.Runner),
	}, nil
}

// SolverOptions are the tolerances adaptive solvers run with.
func (m *Model) SolverOptions() integrators.Options { return m.solverOpts }

// Context holds the model variables, and the optimizer state once training
// has started.
func (m *Model) Context() *context.Context { return m.ctx }

// Encode maps frames [bs, d*d] to raw angle embeddings q and their unit
// projections.
func (m *Model) Encode(x *Node) (q, qn *Node) {
	q = m.Encoder.Apply(x)
	return q, Div(q, tensor.Expand(tensor.RowNorm(q), q))
}

// AngleVelEst estimates the angular velocity from two consecutive unit
// embeddings; algebraically it is sin(Δθ)/dt.
func AngleVelEst(q0n, q1n *Node, dt float64) *Node {
	cos0, sin0 := tensor.Col(q0n, 0), tensor.Col(q0n, 1)
	dCos := Sub(tensor.Col(q1n, 0), cos0)
	dSin := Sub(tensor.Col(q1n, 1), sin0)
	return MulScalar(Sub(Mul(dSin, cos0), Mul(dCos, sin0)), 1/dt)
}

// ContentNode is the learned upright image [1, d*d] in graph g.
func (m *Model) ContentNode(g *Graph) *Node {
	return m.Obs.Apply(Const(g, [][]float64{{1}}))
}

// frame returns time slice t of x [T, bs, d*d] as [bs, d*d].
func frame(x *Node, t int) *Node {
	dims := x.Shape().Dimensions
	return Reshape(Slice(x, AxisRange(t, t+1), AxisRange(), AxisRange()), dims[1], dims[2])
}

// initial encodes the first two frames into z0 = (q0n, q̇0, u).
func (m *Model) initial(x, u *Node, dt0 float64) (q0, q0n, q1n, qdot0, z0 *Node) {
	q0, q0n = m.Encode(frame(x, 0))
	_, q1n = m.Encode(frame(x, 1))
	qdot0 = AngleVelEst(q0n, q1n, dt0)
	return q0, q0n, q1n, qdot0, tensor.HCat(q0n, qdot0, u)
}

// Build is the forward pass over frames x [T, bs, d*d] and controls
// u [bs, 1]: it integrates the latent state along plan, whose step sizes
// arrive in dts, and renders every predicted angle.
func (m *Model) Build(x, u, dts *Node, dt0 float64, plan integrators.Plan, stepper integrators.Stepper) *Forward {
	dims := x.Shape().Dimensions
	T, bs, d2 := dims[0], dims[1], dims[2]
	if len(plan)+1 != T {
		panic(fmt.Errorf("%w: plan covers %d frames, batch has %d", tensor.ErrShape, len(plan)+1, T))
	}

	q0, q0n, q1n, qdot0, z0 := m.initial(x, u, dt0)
	traj := integrators.Integrate(m.ODE.Derive, z0, dts, plan, stepper)

	qs := make([]*Node, len(traj))
	for i, z := range traj {
		qs[i] = tensor.Cols(z, 0, 2)
	}
	content := m.ContentNode(x.Graph())
	xrec := m.Renderer.Render(content, Concatenate(qs, 0))

	return &Forward{
		Q0: q0, Q0n: q0n, Q1n: q1n, QDot0: qdot0,
		Traj: traj, Content: content,
		Xrec: Reshape(xrec, T, bs, d2),
	}
}

// LossOf is the summed squared reconstruction error per sample, averaged
// over the batch, plus the embedding norm penalty.
func (m *Model) LossOf(f *Forward, x *Node) Loss {
	bs := x.Shape().Dimensions[1]
	recon := DivScalar(ReduceAllSum(Square(Sub(f.Xrec, x))), float64(bs))
	norm := Square(AddScalar(ReduceAllMean(tensor.RowNorm(f.Q0)), -1))
	return Loss{
		Recon:       recon,
		NormPenalty: norm,
		Total:       Add(recon, MulScalar(norm, normPenaltyWeight)),
	}
}

// CheckBatch validates frames x [T, bs, d*d] and controls u [bs, 1] against
// the model and the time grid.
func (m *Model) CheckBatch(x, u *tensors.Tensor, tEval []float64) error {
	xd, ud := tensor.Dims(x), tensor.Dims(u)
	if len(xd) != 3 || xd[0] < 2 || xd[0] != len(tEval) {
		return fmt.Errorf("need at least two frames matching the time grid, have frames %v and %d times", xd, len(tEval))
	}
	if xd[2] != m.Size*m.Size {
		return fmt.Errorf("%w: frames have %d pixels, model renders %d", tensor.ErrShape, xd[2], m.Size*m.Size)
	}
	if len(ud) != 2 || ud[0] != xd[1] || ud[1] != 1 {
		return fmt.Errorf("%w: control %v for batch of %d", tensor.ErrShape, ud, xd[1])
	}
	return nil
}

// runner returns the compiled latent step for solver, shared by every
// planning pass of the model.
func (m *Model) runner(solver string) (*integrators.Runner, error) {
	if r, ok := m.runners[solver]; ok {
		return r, nil
	}
	stepper, err := integrators.Default.Get(solver)
	if err != nil {
		return nil, err
	}
	r, err := integrators.NewRunner(m.ctx, m.ODE.Derive, stepper, m.solverOpts)
	if err != nil {
		return nil, err
	}
	m.runners[solver] = r
	return r, nil
}

// Plan chooses the integration steps for a batch. Adaptive solvers run
// their error control on the encoded initial state; the chosen steps are
// then replayed inside the differentiable graph.
func (m *Model) Plan(x, u *tensors.Tensor, tEval []float64, solver string) (integrators.Plan, integrators.Stepper, error) {
	r, err := m.runner(solver)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := r.Stepper().(integrators.AdaptiveStepper); !ok {
		return integrators.FixedPlan(tEval), r.Stepper(), nil
	}
	dt0 := tEval[1] - tEval[0]
	exec, err := m.execs.Get(fmt.Sprintf("init|%g", dt0), func() (*tensor.Exec, error) {
		return tensor.NewExec(m.ctx, func(_ *context.Context, in []*Node) []*Node {
			_, _, _, _, z0 := m.initial(in[0], in[1], dt0)
			return []*Node{z0}
		})
	})
	if err != nil {
		return nil, nil, err
	}
	outs, err := exec.Call(x, u)
	if err != nil {
		return nil, nil, err
	}
	plan, err := r.Plan(outs[0], tEval)
	return plan, r.Stepper(), err
}

// LossValues are the evaluated loss terms.
type LossValues struct {
	Recon       float64
	NormPenalty float64
	Total       float64
}

// Output holds the host values of one evaluated forward pass.
type Output struct {
	Q0, Q0n, Q1n [][]float64
	QDot0        []float64
	// Traj is [T][bs][4].
	Traj    [][][]float64
	Content []float64
	// Xrec is [T][bs][d*d].
	Xrec [][][]float64
	Loss LossValues
}

// Evaluate runs the forward pass and the loss without updating anything.
func (m *Model) Evaluate(x, u *tensors.Tensor, tEval []float64, solver string) (*Output, error) {
	if err := m.CheckBatch(x, u, tEval); err != nil {
		return nil, err
	}
	plan, stepper, err := m.Plan(x, u, tEval, solver)
	if err != nil {
		return nil, err
	}
	dt0 := tEval[1] - tEval[0]
	key := fmt.Sprintf("eval|%s|%g|%s", solver, dt0, plan.Key())
	exec, err := m.execs.Get(key, func() (*tensor.Exec, error) {
		return tensor.NewExec(m.ctx, func(_ *context.Context, in []*Node) []*Node {
			f := m.Build(in[0], in[1], in[2], dt0, plan, stepper)
			l := m.LossOf(f, in[0])
			traj := make([]*Node, len(f.Traj))
			for i, z := range f.Traj {
				traj[i] = Reshape(z, append([]int{1}, z.Shape().Dimensions...)...)
			}
			return []*Node{
				f.Q0, f.Q0n, f.Q1n, f.QDot0, Concatenate(traj, 0), f.Content, f.Xrec,
				l.Recon, l.NormPenalty, l.Total,
			}
		})
	})
	if err != nil {
		return nil, err
	}
	outs, err := exec.Call(x, u, plan.DtsTensor())
	if err != nil {
		return nil, err
	}
	return &Output{
		Q0:      tensor.Rows(outs[0]),
		Q0n:     tensor.Rows(outs[1]),
		Q1n:     tensor.Rows(outs[2]),
		QDot0:   tensor.Flat(outs[3]),
		Traj:    tensor.Blocks(outs[4]),
		Content: tensor.Flat(outs[5]),
		Xrec:    tensor.Blocks(outs[6]),
		Loss: LossValues{
			Recon:       tensor.Item(outs[7]),
			NormPenalty: tensor.Item(outs[8]),
			Total:       tensor.Item(outs[9]),
		},
	}, nil
}

// Content evaluates the learned upright image as d*d row-major pixels.
func (m *Model) Content() ([]float64, error) {
	exec, err := m.execs.Get("content", func() (*tensor.Exec, error) {
		return tensor.NewExec(m.ctx, func(_ *context.Context, in []*Node) []*Node {
			return []*Node{m.Obs.Apply(in[0])}
		})
	})
	if err != nil {
		return nil, err
	}
	outs, err := exec.Call(tensor.FromFlat([]float64{1}, 1, 1))
	if err != nil {
		return nil, err
	}
	return tensor.Flat(outs[0]), nil
}

// Frames flattens Xrec into one row-major [bs*d*d] block per time step.
func (o *Output) Frames() [][]float64 {
	out := make([][]float64, len(o.Xrec))
	for t, rows := range o.Xrec {
		for _, r := range rows {
			out[t] = append(out[t], r...)
		}
	}
	return out
}

func (m *Model) Params() []nn.Param {
	ps := m.Encoder.Params("recog_q_net.")
	ps = append(ps, m.Obs.Params("obs_net.")...)
	return append(ps, m.ODE.Params("ode.")...)
}
