package train

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/dataset"
	"github.com/san-kum/lagdyn/internal/storage"
	"github.com/san-kum/lagdyn/internal/tensor"
)

func tinyConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Name = "tiny"
	cfg.TPred = 2
	cfg.BatchSize = 4
	cfg.LearningRate = 1e-2
	cfg.LogEvery = 1
	cfg.MaxEpochs = 2
	cfg.Model = config.ModelConfig{
		EncoderHidden: 8, ContentHidden: 8, DynamicsHidden: 4,
		EncoderActivation: "elu", DynamicsActivation: "tanh",
	}
	return cfg
}

func tinyDataset(tPred int) *dataset.Dataset {
	f, err := dataset.Generate(config.DataConfig{
		Trajectories: 3, Steps: 5, Size: 4, Dt: 0.05, Integrator: "rk4", MaxTorque: 1,
	}, rand.New(rand.NewSource(0)))
	Expect(err).NotTo(HaveOccurred())
	ds, err := dataset.Arrange(f, tPred)
	Expect(err).NotTo(HaveOccurred())
	return ds
}

var _ = Describe("Trainer", func() {
	var (
		store *storage.Store
		cfg   *config.Config
		ds    *dataset.Dataset
	)

	BeforeEach(func() {
		store = storage.New(filepath.Join(GinkgoT().TempDir(), "logs"))
		cfg = tinyConfig()
		ds = tinyDataset(cfg.TPred)
	})

	It("rejects a dataset cut for another horizon", func() {
		cfg.TPred = 3
		_, err := New(cfg, ds, store)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an invalid config", func() {
		cfg.Solver = "unknown"
		_, err := New(cfg, ds, store)
		Expect(err).To(HaveOccurred())
	})

	It("runs max_epochs and keeps one best checkpoint plus last", func() {
		tr, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())
		h := &History{}
		tr.Observe(h)

		summary, err := tr.Fit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Reason).To(Equal(StopMaxEpochs))
		Expect(summary.Epochs).To(Equal(2))

		// 9 windows in batches of 4 is 3 steps per epoch.
		Expect(summary.Steps).To(Equal(6))
		Expect(h.Steps).To(HaveLen(6))
		Expect(h.Steps[2].Batch).To(Equal(3))
		Expect(h.Steps[2].Batches).To(Equal(3))
		Expect(h.Epochs).To(HaveLen(2))
		Expect(h.End).NotTo(BeNil())

		run, err := store.OpenRun(summary.RunID)
		Expect(err).NotTo(HaveOccurred())
		paths, err := store.Checkpoints(run)
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(HaveLen(1))
		Expect(filepath.Base(paths[0])).To(HavePrefix("tiny-T_p=2-epoch="))
		Expect(summary.LastCheckpoint).To(BeARegularFile())

		rows, err := store.LoadMetrics(summary.RunID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(6))
		Expect(rows[5].Step).To(Equal(6))

		meta, err := store.Load(summary.RunID)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Metrics).To(HaveKeyWithValue("global_step", 6.0))
	})

	It("stops at max_steps mid-epoch", func() {
		cfg.MaxEpochs = 0
		cfg.MaxSteps = 4
		tr, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())

		summary, err := tr.Fit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Reason).To(Equal(StopMaxSteps))
		Expect(summary.Steps).To(Equal(4))
		Expect(summary.Epochs).To(Equal(2))
	})

	It("logs only every n steps", func() {
		cfg.LogEvery = 2
		tr, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())

		summary, err := tr.Fit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		rows, err := store.LoadMetrics(summary.RunID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
	})

	It("saves last.ckpt on interrupt and resumes from it", func() {
		cfg.MaxEpochs = 0
		tr, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		tr.Observe(&cancelAfter{n: 2, cancel: cancel})

		summary, err := tr.Fit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Reason).To(Equal(StopInterrupted))
		Expect(summary.Steps).To(Equal(2))
		Expect(summary.LastCheckpoint).To(BeARegularFile())

		cfg.Resume = summary.LastCheckpoint
		cfg.MaxEpochs = 1
		resumed, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())
		Expect(resumed.GlobalStep()).To(Equal(2))
		Expect(resumed.Epoch()).To(Equal(0))

		a, b := tr.Model().Params(), resumed.Model().Params()
		for i := range a {
			Expect(tensor.Flat(b[i].Var.MustValue())).To(Equal(tensor.Flat(a[i].Var.MustValue())))
		}
		Expect(math.IsInf(resumed.BestLoss(), 1)).To(BeTrue())

		summary, err = resumed.Fit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Steps).To(Equal(5))
		Expect(summary.RunID).To(Equal("tiny/version_1"))
	})

	It("carries the best score over on resume", func() {
		cfg.MaxEpochs = 1
		tr, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())
		summary, err := tr.Fit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsInf(summary.BestLoss, 0)).To(BeFalse())

		cfg.Resume = summary.LastCheckpoint
		cfg.MaxEpochs = 2
		resumed, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())
		Expect(resumed.BestLoss()).To(Equal(summary.BestLoss))
		Expect(resumed.Epoch()).To(Equal(1))
	})

	It("reduces the loss on a fixed dataset", func() {
		cfg.MaxEpochs = 15
		tr, err := New(cfg, ds, store)
		Expect(err).NotTo(HaveOccurred())
		h := &History{}
		tr.Observe(h)

		_, err = tr.Fit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		first, last := h.Epochs[0].Loss, h.Epochs[len(h.Epochs)-1].Loss
		Expect(last).To(BeNumerically("<", first))
	})
})

type cancelAfter struct {
	BaseObserver
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) OnStep(e StepEvent) {
	if e.Step >= c.n {
		c.cancel()
	}
}
