// Package export writes training and analysis results to image and data
// files.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrNoData = errors.New("no data to export")

// LossPNG plots the reconstruction and total loss against the global step.
func LossPNG(path string, steps []int, recon, total []float64) error {
	if len(steps) == 0 {
		return ErrNoData
	}
	if len(recon) != len(steps) || len(total) != len(steps) {
		return fmt.Errorf("loss series lengths differ: %d steps, %d recon, %d total", len(steps), len(recon), len(total))
	}

	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		ys    []float64
		color color.Color
		dash  bool
	}{
		{"recon_loss", recon, color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, false},
		{"train_loss", total, color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, true},
	}
	for _, s := range series {
		pts := make(plotter.XYs, len(steps))
		for i := range steps {
			pts[i].X = float64(steps[i])
			pts[i].Y = s.ys[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = s.color
		if s.dash {
			line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true

	return savePNG(p, 8, 5, path)
}

// PhasePNG plots a trajectory in the (angle, velocity) plane.
func PhasePNG(path string, angles, velocities []float64) error {
	if len(angles) == 0 {
		return ErrNoData
	}
	if len(angles) != len(velocities) {
		return fmt.Errorf("phase series lengths differ: %d angles, %d velocities", len(angles), len(velocities))
	}

	p := plot.New()
	p.Title.Text = "Latent phase portrait"
	p.X.Label.Text = "q (rad)"
	p.Y.Label.Text = "q_dot (rad/s)"

	pts := make(plotter.XYs, len(angles))
	for i := range angles {
		pts[i].X = angles[i]
		pts[i].Y = velocities[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)

	return savePNG(p, 6, 6, path)
}

func savePNG(p *plot.Plot, widthIn, heightIn float64, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(96),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
