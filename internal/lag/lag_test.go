package lag

import (
	"math"
	"math/rand"
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/integrators"
	"github.com/san-kum/lagdyn/internal/nn"
	"github.com/san-kum/lagdyn/internal/tensor"
)

func state(rows ...[4]float64) *tensors.Tensor {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r[:]...)
	}
	return tensor.FromRows(out)
}

func newNet(hidden int, seed int64) *Net {
	return New(context.New(), hidden, nn.TanhAct{}, rand.New(rand.NewSource(seed)))
}

// derive evaluates the vector field on host states.
func derive(t *testing.T, net *Net, z *tensors.Tensor) [][]float64 {
	t.Helper()
	outs, err := tensor.Eval(net.Context(), func(in []*Node) []*Node {
		return []*Node{net.Derive(in[0])}
	}, z)
	if err != nil {
		t.Fatal(err)
	}
	return tensor.Rows(outs[0])
}

func TestDeriveShapeAndKinematics(t *testing.T) {
	net := newNet(50, 0)
	th := 0.7
	d := derive(t, net, state(
		[4]float64{math.Cos(th), math.Sin(th), 1.5, 0.3},
		[4]float64{1, 0, 0, 0},
	))

	if len(d) != 2 || len(d[0]) != 4 {
		t.Fatalf("expected 2x4, got %dx%d", len(d), len(d[0]))
	}
	if math.Abs(d[0][0]+math.Sin(th)*1.5) > 1e-12 {
		t.Errorf("dcos/dt = %f, expected %f", d[0][0], -math.Sin(th)*1.5)
	}
	if math.Abs(d[0][1]-math.Cos(th)*1.5) > 1e-12 {
		t.Errorf("dsin/dt = %f, expected %f", d[0][1], math.Cos(th)*1.5)
	}
	for i := 0; i < 2; i++ {
		if d[i][3] != 0 {
			t.Errorf("control derivative row %d = %f", i, d[i][3])
		}
	}
	// At rest on the axis, both kinematic rates vanish.
	if d[1][0] != 0 || d[1][1] != 0 {
		t.Errorf("expected zero kinematic rates at rest, got %v", d[1])
	}
}

// A finite difference of V and m⁻¹ along the circle matches the acceleration.
func TestAccelerationMatchesAngleDerivative(t *testing.T) {
	net := newNet(20, 1)
	th, qd, u := -1.1, 0.8, 0.5
	got := derive(t, net, state([4]float64{math.Cos(th), math.Sin(th), qd, u}))[0][2]

	heads, err := tensor.NewExec(net.Context(), func(_ *context.Context, in []*Node) []*Node {
		return []*Node{net.M.Apply(in[0]), net.V.Apply(in[0]), net.G.Apply(in[0])}
	})
	if err != nil {
		t.Fatal(err)
	}
	eval := func(a float64) (mInv, v, g float64) {
		outs, err := heads.Call(tensor.FromRows([][]float64{{math.Cos(a), math.Sin(a)}}))
		if err != nil {
			t.Fatal(err)
		}
		return tensor.Item(outs[0]), tensor.Item(outs[1]), tensor.Item(outs[2])
	}
	const h = 1e-5
	mUp, vUp, _ := eval(th + h)
	mDn, vDn, _ := eval(th - h)
	m, _, g := eval(th)
	dV := (vUp - vDn) / (2 * h)
	dm := (mUp - mDn) / (2 * h)

	want := m*(g*u-dV) + 0.5*dm/m*qd*qd
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("q_ddot = %f, numeric %f", got, want)
	}
}

func TestParamsNamed(t *testing.T) {
	net := newNet(8, 2)
	ps := net.Params("ode.")
	if len(ps) != 18 {
		t.Fatalf("expected 18 params, got %d", len(ps))
	}
	if ps[0].Name != "ode.M_net.linear1.weight" || ps[17].Name != "ode.g_net.linear3.bias" {
		t.Errorf("unexpected names %s .. %s", ps[0].Name, ps[17].Name)
	}
	if ps[0].Var.Scope() != "/M_net/linear1" {
		t.Errorf("unexpected scope %s", ps[0].Var.Scope())
	}
}

func TestGradientReachesAllNetworks(t *testing.T) {
	net := newNet(10, 3)
	z := state([4]float64{math.Cos(0.4), math.Sin(0.4), 0.9, 1.0})
	plan := integrators.FixedPlan([]float64{0, 0.05, 0.1})
	ps := net.Params("")

	outs, err := tensor.Eval(net.Context(), func(in []*Node) []*Node {
		traj := integrators.Integrate(net.Derive, in[0], in[1], plan, integrators.NewEuler())
		loss := ReduceAllSum(Square(traj[2]))
		vars := make([]*Node, len(ps))
		for i, p := range ps {
			vars[i] = p.Var.ValueGraph(in[0].Graph())
		}
		return Gradient(loss, vars...)
	}, z, plan.DtsTensor())
	if err != nil {
		t.Fatal(err)
	}

	for i, p := range ps {
		nonzero := false
		for _, g := range tensor.Flat(outs[i]) {
			if g != 0 {
				nonzero = true
				break
			}
		}
		// Output biases of V never reach the vector field.
		if !nonzero && p.Name != "V_net.linear3.bias" {
			t.Errorf("no gradient reached %s", p.Name)
		}
	}
}

func TestEnergyPositiveKinetic(t *testing.T) {
	net := newNet(10, 4)
	e, err := net.Energies(state([4]float64{1, 0, 0, 0}, [4]float64{1, 0, 2, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if e[1] <= e[0] {
		t.Errorf("kinetic energy should be positive: %f <= %f", e[1], e[0])
	}
}
