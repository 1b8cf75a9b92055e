package analysis

import (
	"math"

	"github.com/san-kum/lagdyn/internal/integrators"
	"github.com/san-kum/lagdyn/internal/lag"
	"github.com/san-kum/lagdyn/internal/metrics"
	"github.com/san-kum/lagdyn/internal/tensor"
)

type RolloutResult struct {
	Times      []float64
	Angles     []float64
	Velocities []float64
	Energies   []float64
	// EnergyDrift is the largest relative deviation from the initial energy.
	EnergyDrift float64
}

// Rollout integrates the learned dynamics from angle theta0 with velocity
// qdot0 under constant control u. Angles are unwrapped so the series is
// continuous. The step is compiled once and driven on the host.
func Rollout(net *lag.Net, theta0, qdot0, u, dt float64, steps int, solver string) (*RolloutResult, error) {
	stepper, err := integrators.Default.Get(solver)
	if err != nil {
		return nil, err
	}
	runner, err := integrators.NewRunner(net.Context(), net.Derive, stepper, integrators.DefaultOptions())
	if err != nil {
		return nil, err
	}

	times := make([]float64, steps+1)
	for i := range times {
		times[i] = float64(i) * dt
	}
	z0 := tensor.FromRows([][]float64{{math.Cos(theta0), math.Sin(theta0), qdot0, u}})
	traj, solveErr := runner.Solve(z0, times)

	states := make([][]float64, len(traj))
	for i, z := range traj {
		states[i] = tensor.Flat(z)
	}
	energies, err := net.Energies(tensor.FromRows(states))
	if err != nil {
		return nil, err
	}

	res := &RolloutResult{
		Times:      times[:len(states)],
		Angles:     make([]float64, len(states)),
		Velocities: make([]float64, len(states)),
		Energies:   energies,
	}
	drift := metrics.NewEnergyDrift()
	for i, z := range states {
		angle := math.Atan2(z[1], z[0])
		if i > 0 {
			prev := res.Angles[i-1]
			angle = prev + math.Remainder(angle-prev, 2*math.Pi)
		}
		res.Angles[i] = angle
		res.Velocities[i] = z[2]
		drift.Observe(energies[i])
	}
	res.EnergyDrift = drift.Value()
	return res, solveErr
}
