package dataset

import (
	"math"
	"math/rand"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/core/graph"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/tensor"
)

func tinyFile(trajectories, steps int) *File {
	f := &File{Dt: 0.1, Size: 2}
	for i := 0; i < trajectories; i++ {
		tr := Trajectory{U: float64(i)}
		for s := 0; s < steps; s++ {
			v := float64(100*i + s)
			tr.Frames = append(tr.Frames, []float64{v, v, v, v})
			tr.Angles = append(tr.Angles, v)
		}
		f.Trajectories = append(f.Trajectories, tr)
	}
	return f
}

// derive evaluates the pendulum field on one host state row.
func derive(p *Pendulum, row ...float64) []float64 {
	outs, err := tensor.Eval(nil, func(in []*graph.Node) []*graph.Node {
		return []*graph.Node{p.Derive(in[0])}
	}, tensor.FromRows([][]float64{row}))
	Expect(err).NotTo(HaveOccurred())
	return tensor.Flat(outs[0])
}

var _ = Describe("Pendulum", func() {
	It("rests at the bottom", func() {
		p := NewPendulum()
		Expect(derive(p, 0, 0, 0)).To(Equal([]float64{0, 0, 0}))
	})

	It("accelerates back toward the bottom", func() {
		p := NewPendulum()
		d := derive(p, math.Pi/2, 0, 0)
		Expect(d[1]).To(BeNumerically("~", -p.Gravity/p.Length, 1e-12))
	})

	It("applies torque", func() {
		p := NewPendulum()
		d := derive(p, 0, 0, 2)
		Expect(d[1]).To(BeNumerically("~", 2, 1e-12))
		Expect(d[2]).To(BeZero())
	})

	It("draws the rod below the center at theta 0", func() {
		img := Rasterize(0, 8)
		Expect(img[6*8+4]).To(BeNumerically(">", 0))
		Expect(img[0*8+4]).To(BeZero())
		for _, v := range img {
			Expect(v).To(And(BeNumerically(">=", 0), BeNumerically("<=", 1)))
		}
	})

	It("mirrors the rod at theta pi", func() {
		down, up := Rasterize(0, 8), Rasterize(math.Pi, 8)
		for i := 0; i < 8; i++ {
			for j := 0; j < 8; j++ {
				Expect(up[i*8+j]).To(BeNumerically("~", down[(7-i)*8+(7-j)], 1e-9))
			}
		}
	})
})

var _ = Describe("Arrange", func() {
	It("produces every sliding window", func() {
		ds, err := Arrange(tinyFile(2, 5), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(ds.T).To(Equal(3))
		Expect(ds.Len()).To(Equal(6))
		Expect(ds.Samples[0].Frames[0][0]).To(Equal(0.0))
		Expect(ds.Samples[2].Frames[2][0]).To(Equal(4.0))
		Expect(ds.Samples[3].U).To(Equal(1.0))
		Expect(ds.Samples[3].Frames[0][0]).To(Equal(100.0))
	})

	It("builds the evaluation grid from dt", func() {
		ds, err := Arrange(tinyFile(1, 5), 4)
		Expect(err).NotTo(HaveOccurred())
		ts := ds.TEval()
		Expect(ts).To(HaveLen(5))
		Expect(ts[0]).To(BeZero())
		Expect(ts[4]).To(BeNumerically("~", 0.4, 1e-12))
	})

	It("rejects empty and short data", func() {
		_, err := Arrange(&File{Dt: 0.1, Size: 2}, 2)
		Expect(err).To(MatchError(ErrEmptyDataset))

		_, err = Arrange(tinyFile(1, 2), 4)
		Expect(err).To(MatchError(ErrShortTrajectory))
	})
})

var _ = Describe("Loader", func() {
	var ds *Dataset

	BeforeEach(func() {
		var err error
		ds, err = Arrange(tinyFile(3, 4), 1)
		Expect(err).NotTo(HaveOccurred())
	})

	It("covers the epoch with a partial final batch", func() {
		l := NewLoader(ds, 4, false, rand.New(rand.NewSource(0)))
		Expect(l.Batches()).To(Equal(3))

		var sizes []int
		for b, ok := l.Next(); ok; b, ok = l.Next() {
			Expect(b.X).To(HaveLen(2))
			Expect(b.X[0][0]).To(HaveLen(4))
			sizes = append(sizes, b.Size())
		}
		Expect(sizes).To(Equal([]int{4, 4, 1}))
	})

	It("keeps frames and controls aligned", func() {
		l := NewLoader(ds, 9, true, rand.New(rand.NewSource(1)))
		b, ok := l.Next()
		Expect(ok).To(BeTrue())
		for r := 0; r < b.Size(); r++ {
			traj := math.Floor(b.X[0][r][0] / 100)
			Expect(b.U[r]).To(Equal(traj))
			Expect(b.X[1][r][0]).To(Equal(b.X[0][r][0] + 1))
		}
	})

	It("restarts after Reset with the same seed sequence", func() {
		a := NewLoader(ds, 3, true, rand.New(rand.NewSource(7)))
		b := NewLoader(ds, 3, true, rand.New(rand.NewSource(7)))
		x, _ := a.Next()
		y, _ := b.Next()
		Expect(x.X[0]).To(Equal(y.X[0]))

		for _, ok := a.Next(); ok; _, ok = a.Next() {
		}
		_, ok := a.Next()
		Expect(ok).To(BeFalse())

		a.Reset()
		_, ok = a.Next()
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("Batch", func() {
	It("packs time-major frames and a control column", func() {
		ds, err := Arrange(tinyFile(2, 3), 1)
		Expect(err).NotTo(HaveOccurred())
		x, u := ds.Batch(0, 2).Tensors()
		Expect(tensor.Dims(x)).To(Equal([]int{2, 2, 4}))
		Expect(tensor.Dims(u)).To(Equal([]int{2, 1}))
		Expect(tensor.Flat(u)).To(Equal([]float64{0, 1}))
		Expect(tensor.Blocks(x)[1][1][0]).To(Equal(101.0))
	})
})

var _ = Describe("Generate", func() {
	It("writes a file that loads back into windows", func() {
		cfg := config.DataConfig{Trajectories: 4, Steps: 6, Size: 8, Dt: 0.05, Integrator: "rk4", MaxTorque: 2}
		f, err := Generate(cfg, rand.New(rand.NewSource(0)))
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Trajectories).To(HaveLen(4))

		for _, tr := range f.Trajectories {
			Expect(tr.Frames).To(HaveLen(6))
			Expect(tr.Frames[0]).To(HaveLen(64))
			Expect(math.Abs(tr.U)).To(BeNumerically("<=", 2))
		}

		path := filepath.Join(GinkgoT().TempDir(), "data", "train.gob")
		Expect(Save(path, f)).To(Succeed())

		ds, err := Load(path, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(ds.Len()).To(Equal(4 * 2))
		Expect(ds.Size).To(Equal(8))
	})

	It("conserves energy without torque", func() {
		cfg := config.DataConfig{Trajectories: 2, Steps: 40, Size: 4, Dt: 0.01, Integrator: "rk4"}
		f, err := Generate(cfg, rand.New(rand.NewSource(3)))
		Expect(err).NotTo(HaveOccurred())

		p := NewPendulum()
		for _, tr := range f.Trajectories {
			a := tr.Angles
			n := len(a)
			w0 := (a[2] - a[0]) / (2 * cfg.Dt)
			w1 := (a[n-1] - a[n-3]) / (2 * cfg.Dt)
			e0 := p.Energy(a[1], w0)
			e1 := p.Energy(a[n-2], w1)
			Expect(e1).To(BeNumerically("~", e0, 0.05))
		}
	})

	It("rejects bad settings", func() {
		_, err := Generate(config.DataConfig{Trajectories: 0, Steps: 5, Size: 4, Dt: 0.1, Integrator: "rk4"}, rand.New(rand.NewSource(0)))
		Expect(err).To(HaveOccurred())
	})
})
