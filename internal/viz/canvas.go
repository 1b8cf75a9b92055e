package viz

import "strings"

const brailleBlank = 0x2800

// brailleDots maps a (dx, dy) sub-cell position to its dot bit; each cell
// holds 2×4 dots numbered 1-4-2-5-3-6-7-8.
var brailleDots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of Braille cells addressed in dot coordinates, so a
// Width×Height canvas has (2·Width)×(4·Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// CanvasFor returns a canvas just large enough for a size×size frame.
func CanvasFor(size int) *Canvas {
	return NewCanvas((size+1)/2, (size+3)/4)
}

// Set turns on the dot at (x, y); out-of-range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.Grid[y/4][x/2] |= brailleDots[y%4][x%2]
}

func (c *Canvas) Clear() {
	for _, row := range c.Grid {
		for j := range row {
			row[j] = brailleBlank
		}
	}
}

// DrawImage sets every pixel of a row-major size×size frame brighter than
// threshold.
func (c *Canvas) DrawImage(img []float64, size int, threshold float64) {
	for p, v := range img[:size*size] {
		if v > threshold {
			c.Set(p%size, p/size)
		}
	}
}

func (c *Canvas) String() string {
	lines := make([]string, len(c.Grid))
	for i, row := range c.Grid {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n") + "\n"
}

// Thumbnail renders a frame as Braille text, lighting pixels above half the
// frame's peak.
func Thumbnail(img []float64, size int) string {
	peak := 0.0
	for _, v := range img {
		peak = max(peak, v)
	}
	c := CanvasFor(size)
	c.DrawImage(img, size, 0.5*peak)
	return c.String()
}
