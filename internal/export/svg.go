package export

import (
	"fmt"
	"math"
	"strings"
)

// ImageSVG draws a square grayscale image (row-major, values in [0, 1]) as
// one rect per pixel.
func ImageSVG(pixels []float64, size int, scale float64) string {
	if size <= 0 || len(pixels) != size*size {
		return ""
	}
	side := float64(size) * scale

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#000000"/>
`, side, side, side, side))

	for i, v := range pixels {
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		g := int(math.Round(math.Min(v, 1) * 255))
		x := float64(i%size) * scale
		y := float64(i/size) * scale
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#%02x%02x%02x"/>
`, x, y, scale, scale, g, g, g))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// PathSVG draws a polyline through points, scaled to fill the view with a
// 10% margin.
func PathSVG(xs, ys []float64, width, height int, strokeColor string) string {
	if len(xs) < 2 || len(xs) != len(ys) {
		return ""
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := range xs {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i := range xs {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
