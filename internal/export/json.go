package export

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/san-kum/lagdyn/internal/analysis"
)

// Number is a float64 that encodes NaN and ±Inf as null.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func numbers(xs []float64) []Number {
	out := make([]Number, len(xs))
	for i, x := range xs {
		out[i] = Number(x)
	}
	return out
}

// RolloutData is a rollout in export form. A diverged rollout keeps its
// length; non-finite samples appear as null.
type RolloutData struct {
	Checkpoint        string    `json:"checkpoint"`
	Solver            string    `json:"solver"`
	Dt                float64   `json:"dt"`
	Steps             int       `json:"steps"`
	Control           float64   `json:"control"`
	Times             []float64 `json:"times"`
	Angles            []Number  `json:"angles"`
	Velocities        []Number  `json:"velocities"`
	Energies          []Number  `json:"energies"`
	EnergyDrift       Number    `json:"energy_drift"`
	DominantFrequency Number    `json:"dominant_frequency"`
}

// NewRolloutData collects a rollout and its summary numbers for export.
func NewRolloutData(checkpoint, solver string, dt, u float64, r *analysis.RolloutResult) RolloutData {
	return RolloutData{
		Checkpoint:        checkpoint,
		Solver:            solver,
		Dt:                dt,
		Steps:             len(r.Times) - 1,
		Control:           u,
		Times:             r.Times,
		Angles:            numbers(r.Angles),
		Velocities:        numbers(r.Velocities),
		Energies:          numbers(r.Energies),
		EnergyDrift:       Number(r.EnergyDrift),
		DominantFrequency: Number(analysis.DominantFrequency(r.Angles, dt)),
	}
}

func WriteJSON(w io.Writer, data RolloutData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data RolloutData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}
