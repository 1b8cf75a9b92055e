package integrators

import (
	"errors"
	"math"
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// oscillator is x'' = -x with state rows (x, v).
func oscillator(z *Node) *Node {
	return tensor.HCat(tensor.Col(z, 1), Neg(tensor.Col(z, 0)))
}

func energy(z *tensors.Tensor, row int) float64 {
	r := tensor.Rows(z)[row]
	return 0.5 * (r[0]*r[0] + r[1]*r[1])
}

func at(z *tensors.Tensor, row, col int) float64 {
	return tensor.Rows(z)[row][col]
}

func grid(n int, dt float64) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * dt
	}
	return ts
}

// stepper compiles a single s.Step on the oscillator.
func stepper(t testing.TB, s Stepper) *tensor.Exec {
	t.Helper()
	exec, err := tensor.NewExec(nil, func(_ *context.Context, in []*Node) []*Node {
		return []*Node{s.Step(oscillator, in[0], in[1])}
	})
	if err != nil {
		t.Fatal(err)
	}
	return exec
}

func run(t testing.TB, exec *tensor.Exec, z *tensors.Tensor, dt float64, steps int) *tensors.Tensor {
	t.Helper()
	for i := 0; i < steps; i++ {
		outs, err := exec.Call(z, dt)
		if err != nil {
			t.Fatal(err)
		}
		z = outs[0]
	}
	return z
}

func TestRK4Accuracy(t *testing.T) {
	dt := 0.01
	steps := 100
	z := run(t, stepper(t, NewRK4()), tensor.FromFlat([]float64{1.0, 0.0}, 1, 2), dt, steps)

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(at(z, 0, 0)-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", at(z, 0, 0), expectedX)
	}

	if math.Abs(at(z, 0, 1)-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", at(z, 0, 1), expectedV)
	}
}

func TestFixedStepOrder(t *testing.T) {
	tests := []struct {
		name string
		tol  float64
	}{
		{"euler", 1e-1},
		{"midpoint", 1e-3},
		{"rk4", 1e-6},
		{"dopri5", 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z0 := tensor.FromFlat([]float64{1.0, 0.0}, 1, 2)
			traj, err := Odeint(nil, oscillator, z0, grid(101, 0.01), tt.name, DefaultOptions())
			if err != nil {
				t.Fatalf("odeint failed: %v", err)
			}
			got := at(traj[len(traj)-1], 0, 0)
			if math.Abs(got-math.Cos(1)) > tt.tol {
				t.Errorf("x(1) = %.8f, expected %.8f", got, math.Cos(1))
			}
		})
	}
}

func TestOdeintShape(t *testing.T) {
	z0 := tensor.FromFlat([]float64{1, 0, 0, 1, 0.5, 0.5}, 3, 2)
	ts := grid(5, 0.05)

	traj, err := Odeint(nil, oscillator, z0, ts, "euler", DefaultOptions())
	if err != nil {
		t.Fatalf("odeint failed: %v", err)
	}
	if len(traj) != len(ts) {
		t.Fatalf("expected %d states, got %d", len(ts), len(traj))
	}
	if traj[0] != z0 {
		t.Error("first state should be the initial condition")
	}
	for i, z := range traj {
		if d := tensor.Dims(z); d[0] != 3 || d[1] != 2 {
			t.Errorf("state %d has shape %v", i, d)
		}
	}
}

func TestOdeintSinglePoint(t *testing.T) {
	z0 := tensor.FromFlat([]float64{1, 0}, 1, 2)
	traj, err := Odeint(nil, oscillator, z0, []float64{0}, "rk4", DefaultOptions())
	if err != nil {
		t.Fatalf("odeint failed: %v", err)
	}
	if len(traj) != 1 || traj[0] != z0 {
		t.Error("single-point grid should return only z0")
	}
}

func TestOdeintErrors(t *testing.T) {
	z0 := tensor.FromFlat([]float64{1, 0}, 1, 2)

	if _, err := Odeint(nil, oscillator, z0, grid(3, 0.1), "leapfrog", DefaultOptions()); !errors.Is(err, ErrUnknownSolver) {
		t.Errorf("expected ErrUnknownSolver, got %v", err)
	}
	if _, err := Odeint(nil, oscillator, z0, nil, "euler", DefaultOptions()); !errors.Is(err, ErrTimeGrid) {
		t.Errorf("expected ErrTimeGrid for empty grid, got %v", err)
	}
	if _, err := Odeint(nil, oscillator, z0, []float64{0, 0.2, 0.1}, "euler", DefaultOptions()); !errors.Is(err, ErrTimeGrid) {
		t.Errorf("expected ErrTimeGrid for descending grid, got %v", err)
	}

	opts := DefaultOptions()
	opts.MaxSteps = 2
	if _, err := Odeint(nil, oscillator, z0, grid(10, 0.1), "dopri5", opts); !errors.Is(err, ErrTooManySteps) {
		t.Errorf("expected ErrTooManySteps, got %v", err)
	}
}

func TestIntegrateGradientFlows(t *testing.T) {
	ts := grid(11, 0.1)
	plan := FixedPlan(ts)
	outs, err := tensor.Eval(nil, func(in []*Node) []*Node {
		traj := Integrate(oscillator, in[0], in[1], plan, NewRK4())
		x := ReduceAllSum(tensor.Col(traj[len(traj)-1], 0))
		return Gradient(x, in[0])
	}, tensor.FromFlat([]float64{1, 0}, 1, 2), plan.DtsTensor())
	if err != nil {
		t.Fatal(err)
	}
	grad := tensor.Flat(outs[0])

	// x(t) = x0 cos t + v0 sin t
	if math.Abs(grad[0]-math.Cos(1)) > 1e-5 {
		t.Errorf("dx/dx0 = %f, expected %f", grad[0], math.Cos(1))
	}
	if math.Abs(grad[1]-math.Sin(1)) > 1e-5 {
		t.Errorf("dx/dv0 = %f, expected %f", grad[1], math.Sin(1))
	}
}

func TestIntegrateMatchesOdeint(t *testing.T) {
	z0 := tensor.FromFlat([]float64{1, 0, 0.2, -0.4}, 2, 2)
	ts := []float64{0, 0.5, 1.5}
	opts := DefaultOptions()
	plan, err := PlanSteps(nil, oscillator, z0, ts, NewRK45(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 2 || len(plan[1]) < 1 {
		t.Fatalf("unexpected plan %v", plan)
	}
	var sum float64
	for _, dt := range plan[1] {
		sum += dt
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("second interval steps sum to %f, expected 1", sum)
	}

	host, err := Odeint(nil, oscillator, z0, ts, "dopri5", opts)
	if err != nil {
		t.Fatal(err)
	}
	outs, err := tensor.Eval(nil, func(in []*Node) []*Node {
		return Integrate(oscillator, in[0], in[1], plan, NewRK45())
	}, z0, plan.DtsTensor())
	if err != nil {
		t.Fatal(err)
	}
	for i := range ts {
		a, b := tensor.Flat(host[i]), tensor.Flat(outs[i])
		for k := range a {
			if math.Abs(a[k]-b[k]) > 1e-10 {
				t.Errorf("t=%g component %d: host %f, graph %f", ts[i], k, a[k], b[k])
			}
		}
	}
}

func TestPlanKey(t *testing.T) {
	p := Plan{{0.1}, {0.05, 0.05}, {0.1}}
	if p.Key() != "1,2,1" {
		t.Errorf("key = %q", p.Key())
	}
	if got := p.Steps(); len(got) != 4 || got[2] != 0.05 {
		t.Errorf("steps = %v", got)
	}
	if FixedPlan(grid(4, 0.1)).Key() != "1,1,1" {
		t.Error("fixed plan should take one step per interval")
	}
}

func TestRegistryNames(t *testing.T) {
	names := Default.Names()
	for _, want := range []string{"dopri5", "euler", "midpoint", "rk4", "rk45"} {
		if !Default.Has(want) {
			t.Errorf("missing solver %s in %v", want, names)
		}
	}
}
