package analysis

import (
	"math"
	"strings"
)

type Point struct{ X, Y float64 }

// PhasePortrait2D is a trajectory in the (q, q_dot) plane.
type PhasePortrait2D struct {
	Points []Point
}

// PhasePortrait pairs each rollout angle with its velocity.
func PhasePortrait(r *RolloutResult) *PhasePortrait2D {
	portrait := &PhasePortrait2D{Points: make([]Point, len(r.Angles))}
	for i := range r.Angles {
		portrait.Points[i] = Point{X: r.Angles[i], Y: r.Velocities[i]}
	}
	return portrait
}

// span returns the padded [lo, lo+width] range of vals.
func span(vals func(Point) float64, pts []Point) (lo, width float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo, hi = math.Min(lo, vals(p)), math.Max(hi, vals(p))
	}
	width = hi - lo
	if width == 0 {
		width = 1
	}
	return lo - 0.1*width, 1.2 * width
}

// PhasePortraitToASCII draws the portrait on a width×height character grid
// with the zero axes. The first point is marked 'o', the rest '•'.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}
	x0, w := span(func(p Point) float64 { return p.X }, portrait.Points)
	y0, h := span(func(p Point) float64 { return p.Y }, portrait.Points)

	col := func(x float64) int { return int((x - x0) / w * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-y0)/h*float64(height-1)) }
	inside := func(r, c int) bool { return r >= 0 && r < height && c >= 0 && c < width }

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	if c := col(0); c >= 0 && c < width {
		for r := range grid {
			grid[r][c] = '│'
		}
	}
	if r := row(0); r >= 0 && r < height {
		for c := range grid[r] {
			if grid[r][c] == '│' {
				grid[r][c] = '┼'
			} else {
				grid[r][c] = '─'
			}
		}
	}

	for i := len(portrait.Points) - 1; i >= 0; i-- {
		p := portrait.Points[i]
		r, c := row(p.Y), col(p.X)
		if !inside(r, c) {
			continue
		}
		if i == 0 {
			grid[r][c] = 'o'
		} else {
			grid[r][c] = '•'
		}
	}

	var sb strings.Builder
	for _, line := range grid {
		sb.WriteString(string(line))
		sb.WriteByte('\n')
	}
	return sb.String()
}
