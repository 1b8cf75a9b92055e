package dataset

import (
	"math"

	. "github.com/gomlx/gomlx/pkg/core/graph"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// Pendulum is the ground-truth simulator. Rows of the state are
// (theta, omega, torque) with theta = 0 hanging straight down; the torque
// column is held constant.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.0,
		Gravity: 10.0,
	}
}

// Derive is the vector field of (theta, omega, torque) rows.
func (p *Pendulum) Derive(z *Node) *Node {
	theta, omega, torque := tensor.Col(z, 0), tensor.Col(z, 1), tensor.Col(z, 2)
	restoring := MulScalar(Sin(theta), p.Mass*p.Gravity*p.Length)
	net := Sub(Sub(torque, MulScalar(omega, p.Damping)), restoring)
	alpha := MulScalar(net, 1/(p.Mass*p.Length*p.Length))
	return tensor.HCat(omega, alpha, ZerosLike(torque))
}

func (p *Pendulum) Energy(theta, omega float64) float64 {
	kinetic := 0.5 * p.Mass * p.Length * p.Length * omega * omega
	potential := p.Mass * p.Gravity * p.Length * (1 - math.Cos(theta))
	return kinetic + potential
}

// Rasterize draws a rod from the image center at angle theta into a
// size×size grayscale frame with values in [0, 1].
func Rasterize(theta float64, size int) []float64 {
	const (
		rodLength = 0.8
		rodWidth  = 0.15
	)
	ax, ay := math.Sin(theta), math.Cos(theta)
	img := make([]float64, size*size)
	for i := 0; i < size; i++ {
		y := (2*float64(i)+1)/float64(size) - 1
		for j := 0; j < size; j++ {
			x := (2*float64(j)+1)/float64(size) - 1
			s := math.Max(0, math.Min(rodLength, x*ax+y*ay))
			dist := math.Hypot(x-s*ax, y-s*ay)
			if v := 1 - dist/rodWidth; v > 0 {
				img[i*size+j] = v
			}
		}
	}
	return img
}
