package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3a3a5c")).
			Padding(0, 2)

	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).MarginTop(1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// ProgressBar renders fraction in [0, 1] as a bar of width cells in the
// current theme's accent color.
func ProgressBar(fraction float64, width int) string {
	filled := int(math.Round(math.Max(0, math.Min(1, fraction)) * float64(width)))
	done := lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render(strings.Repeat("━", filled))
	rest := lipgloss.NewStyle().Foreground(CurrentTheme.Muted).Render(strings.Repeat("─", width-filled))
	return done + rest
}

// Sparkline renders values as block characters without color, sampling
// down to width. Non-finite values are drawn as gaps.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		span = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		v := values[i*step]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteRune(' ')
			continue
		}
		idx := int((v - lo) / span * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(idx, len(chars)-1))])
	}
	return b.String()
}

// finite drops NaN and Inf values, which asciigraph cannot scale.
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
