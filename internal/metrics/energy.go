package metrics

import "math"

// EnergyDrift is the largest deviation of an observed energy from its first
// sample, relative to |E0|. A zero first sample reports the absolute
// deviation. A NaN sample makes the value NaN until Reset.
type EnergyDrift struct {
	first float64
	seen  bool
	worst float64
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (*EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(energy float64) {
	if !e.seen {
		e.first, e.seen = energy, true
		return
	}
	d := math.Abs(energy - e.first)
	if e.first != 0 {
		d /= math.Abs(e.first)
	}
	if math.IsNaN(d) || d > e.worst {
		e.worst = d
	}
}

func (e *EnergyDrift) Value() float64 { return e.worst }

func (e *EnergyDrift) Reset() { *e = EnergyDrift{} }
