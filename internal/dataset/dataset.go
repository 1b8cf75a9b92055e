// Package dataset generates, stores and batches pendulum image sequences.
package dataset

import (
	"fmt"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/san-kum/lagdyn/internal/tensor"
)

// Sample is one window of T consecutive frames.
type Sample struct {
	Frames [][]float64
	U      float64
}

type Dataset struct {
	Samples []Sample
	Dt      float64
	Size    int
	T       int
}

// Load reads a dataset file and arranges it into prediction windows.
func Load(path string, tPred int) (*Dataset, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Arrange(f, tPred)
}

// Arrange cuts every trajectory into all sliding windows of tPred+1 frames.
func Arrange(f *File, tPred int) (*Dataset, error) {
	if len(f.Trajectories) == 0 {
		return nil, ErrEmptyDataset
	}
	T := tPred + 1
	ds := &Dataset{Dt: f.Dt, Size: f.Size, T: T}
	for i, tr := range f.Trajectories {
		if len(tr.Frames) < T {
			return nil, fmt.Errorf("%w: trajectory %d has %d frames, need %d", ErrShortTrajectory, i, len(tr.Frames), T)
		}
		for s := 0; s+T <= len(tr.Frames); s++ {
			ds.Samples = append(ds.Samples, Sample{Frames: tr.Frames[s : s+T], U: tr.U})
		}
	}
	return ds, nil
}

func (d *Dataset) Len() int { return len(d.Samples) }

// TEval is the evaluation grid [0, dt, ..., (T-1)·dt].
func (d *Dataset) TEval() []float64 {
	ts := make([]float64, d.T)
	for i := range ts {
		ts[i] = float64(i) * d.Dt
	}
	return ts
}

// Batch is time-major: X[t][r] is the d*d frame of sample r at step t and
// U[r] its control.
type Batch struct {
	X [][][]float64
	U []float64
}

func (b Batch) Size() int { return len(b.U) }

// Tensors packs the batch as x [T, bs, d*d] and u [bs, 1].
func (b Batch) Tensors() (x, u *tensors.Tensor) {
	T, bs := len(b.X), len(b.U)
	d2 := len(b.X[0][0])
	flat := make([]float64, 0, T*bs*d2)
	for _, rows := range b.X {
		for _, r := range rows {
			flat = append(flat, r...)
		}
	}
	return tensor.FromFlat(flat, T, bs, d2), tensor.FromFlat(append([]float64(nil), b.U...), bs, 1)
}

// Batch gathers the samples at idx.
func (d *Dataset) Batch(idx ...int) Batch {
	b := Batch{X: make([][][]float64, d.T), U: make([]float64, len(idx))}
	for t := range b.X {
		b.X[t] = make([][]float64, len(idx))
		for r, k := range idx {
			b.X[t][r] = d.Samples[k].Frames[t]
		}
	}
	for r, k := range idx {
		b.U[r] = d.Samples[k].U
	}
	return b
}

// Loader yields one epoch of batches per Reset. The final batch may be
// smaller than the batch size.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []int
	pos       int
}

func NewLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) *Loader {
	l := &Loader{ds: ds, batchSize: batchSize, shuffle: shuffle, rng: rng}
	l.order = make([]int, ds.Len())
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l
}

// Reset starts a new epoch, reshuffling when enabled.
func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Batches is the number of batches per epoch.
func (l *Loader) Batches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

func (l *Loader) Next() (Batch, bool) {
	if l.pos >= len(l.order) {
		return Batch{}, false
	}
	end := min(l.pos+l.batchSize, len(l.order))
	idx := l.order[l.pos:end]
	l.pos = end

	return l.ds.Batch(idx...), true
}
