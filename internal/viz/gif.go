package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
)

func grayPalette() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}

func grayIndex(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v * 255)
}

// WriteGIF animates truth and recon frames (row-major size×size) side by
// side, each pixel scaled up by scale.
func WriteGIF(path string, truth, recon [][]float64, size, scale int) error {
	if len(truth) != len(recon) || len(truth) == 0 {
		return fmt.Errorf("need matching non-empty frame lists, have %d and %d", len(truth), len(recon))
	}
	if scale < 1 {
		scale = 1
	}
	pal := grayPalette()
	w, h := (2*size+1)*scale, size*scale

	anim := gif.GIF{LoopCount: 0}
	for f := range truth {
		img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				a := grayIndex(truth[f][i*size+j])
				b := grayIndex(recon[f][i*size+j])
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						img.SetColorIndex(j*scale+dx, i*scale+dy, a)
						img.SetColorIndex((size+1+j)*scale+dx, i*scale+dy, b)
					}
				}
			}
		}
		for dy := 0; dy < h; dy++ {
			for dx := 0; dx < scale; dx++ {
				img.SetColorIndex(size*scale+dx, dy, 128)
			}
		}
		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, 20)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, &anim)
}
