package dataset

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/integrators"
	"github.com/san-kum/lagdyn/internal/tensor"
)

var (
	// ErrEmptyDataset indicates a dataset without any usable window.
	ErrEmptyDataset = errors.New("dataset: no trajectories")

	// ErrShortTrajectory indicates a trajectory shorter than T_pred+1 frames.
	ErrShortTrajectory = errors.New("dataset: trajectory shorter than prediction window")
)

// Trajectory is one rollout under a constant control.
type Trajectory struct {
	Frames [][]float64
	Angles []float64
	U      float64
}

// File is the on-disk dataset.
type File struct {
	Dt           float64
	Size         int
	Trajectories []Trajectory
}

// Generate simulates cfg.Trajectories pendulums from random states under
// random constant torques and renders every step.
func Generate(cfg config.DataConfig, rng *rand.Rand) (*File, error) {
	if cfg.Trajectories < 1 || cfg.Steps < 2 || cfg.Size < 2 || cfg.Dt <= 0 {
		return nil, fmt.Errorf("invalid generator settings: %+v", cfg)
	}

	z0 := make([][]float64, cfg.Trajectories)
	for i := range z0 {
		z0[i] = []float64{
			(2*rng.Float64() - 1) * math.Pi,
			2*rng.Float64() - 1,
			(2*rng.Float64() - 1) * cfg.MaxTorque,
		}
	}

	ts := make([]float64, cfg.Steps)
	for i := range ts {
		ts[i] = float64(i) * cfg.Dt
	}
	states, err := integrators.Odeint(context.New(), NewPendulum().Derive, tensor.FromRows(z0), ts, cfg.Integrator, integrators.DefaultOptions())
	if err != nil {
		return nil, err
	}
	angles := make([][]float64, len(states))
	for s, z := range states {
		rows := tensor.Rows(z)
		angles[s] = make([]float64, len(rows))
		for i, r := range rows {
			angles[s][i] = r[0]
		}
	}

	f := &File{Dt: cfg.Dt, Size: cfg.Size, Trajectories: make([]Trajectory, cfg.Trajectories)}
	tensor.ParallelFor(cfg.Trajectories, 4, func(start, end int) {
		for i := start; i < end; i++ {
			tr := Trajectory{
				Frames: make([][]float64, cfg.Steps),
				Angles: make([]float64, cfg.Steps),
				U:      z0[i][2],
			}
			for s := range states {
				tr.Angles[s] = angles[s][i]
				tr.Frames[s] = Rasterize(angles[s][i], cfg.Size)
			}
			f.Trajectories[i] = tr
		}
	})
	return f, nil
}

func Save(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if err := gob.NewEncoder(w).Encode(f); err != nil {
		return err
	}
	return w.Flush()
}

func ReadFile(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var f File
	if err := gob.NewDecoder(bufio.NewReader(in)).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &f, nil
}
