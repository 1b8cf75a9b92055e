package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns the magnitude of the first half of the DFT of data.
// Any length is accepted.
func PowerSpectrum(data []float64) []float64 {
	spec := fft.FFTReal(data)
	ps := make([]float64, len(spec)/2)

	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}

	return ps
}

// DominantFrequency is the frequency in Hz of the strongest non-constant
// component of a series sampled every dt.
func DominantFrequency(series []float64, dt float64) float64 {
	n := len(series)
	if n < 4 || dt <= 0 {
		return 0
	}
	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range series {
		centered[i] = v - mean
	}

	ps := PowerSpectrum(centered)
	best := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[best] {
			best = k
		}
	}
	return float64(best) / (float64(n) * dt)
}
