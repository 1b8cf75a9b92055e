package storage

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/model"
	"github.com/san-kum/lagdyn/internal/nn"
)

var _ = Describe("Store", func() {
	var s *Store

	BeforeEach(func() {
		s = New(filepath.Join(GinkgoT().TempDir(), "logs"))
		Expect(s.Init()).To(Succeed())
	})

	It("lists nothing for an empty root", func() {
		runs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(BeEmpty())
	})

	It("versions runs per name", func() {
		a, err := s.CreateRun("ablation")
		Expect(err).NotTo(HaveOccurred())
		b, err := s.CreateRun("ablation")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Version).To(Equal(0))
		Expect(b.Version).To(Equal(1))
		Expect(b.ID()).To(Equal("ablation/version_1"))
		Expect(b.CheckpointDir()).To(BeADirectory())
	})

	It("round-trips metadata and lists runs", func() {
		run, err := s.CreateRun("ablation")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.WriteMetadata(run, RunMetadata{
			HParams: map[string]any{"T_pred": 4, "solver": "euler"},
			Metrics: map[string]float64{"loss": 1.5},
		})).To(Succeed())

		meta, err := s.Load(run.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.ID).To(Equal("ablation/version_0"))
		Expect(meta.HParams).To(HaveKeyWithValue("solver", "euler"))
		Expect(meta.Metrics).To(HaveKeyWithValue("loss", 1.5))

		runs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
	})

	It("reopens a run by id", func() {
		run, err := s.CreateRun("other")
		Expect(err).NotTo(HaveOccurred())

		again, err := s.OpenRun(run.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Dir).To(Equal(run.Dir))

		_, err = s.OpenRun("other")
		Expect(err).To(HaveOccurred())
		_, err = s.OpenRun("other/version_9")
		Expect(err).To(HaveOccurred())
	})

	It("appends metrics across calls", func() {
		run, err := s.CreateRun("ablation")
		Expect(err).NotTo(HaveOccurred())

		Expect(s.AppendMetrics(run, []MetricRow{{Epoch: 0, Step: 1, ReconLoss: 2.5, TrainLoss: 2.51}})).To(Succeed())
		Expect(s.AppendMetrics(run, []MetricRow{{Epoch: 1, Step: 2, ReconLoss: 1.25, TrainLoss: 1.26}})).To(Succeed())

		rows, err := s.LoadMetrics(run.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal([]MetricRow{
			{Epoch: 0, Step: 1, ReconLoss: 2.5, TrainLoss: 2.51},
			{Epoch: 1, Step: 2, ReconLoss: 1.25, TrainLoss: 1.26},
		}))
	})
})

var _ = Describe("Checkpoints", func() {
	var (
		s   *Store
		run *Run
	)

	ckpt := func(epoch int, score float64) *Checkpoint {
		return &Checkpoint{
			Epoch:      epoch,
			GlobalStep: 10 * epoch,
			Monitor:    "loss",
			Score:      score,
			ImageSize:  4,
			Model:      config.DefaultModelConfig(),
			StateDict:  model.StateDict{"w": {DType: "float64", Dims: []int{1, 2}, Data: []float64{0.5, -1}}},
			Optimizer: map[string]nn.VarState{
				"/adam/m": {DType: "float64", Dims: []int{1, 2}, Data: []float64{0.1, 0.2}},
				"/adam/v": {DType: "float64", Dims: []int{1, 2}, Data: []float64{0.01, 0.02}},
			},
		}
	}

	BeforeEach(func() {
		s = New(GinkgoT().TempDir())
		var err error
		run, err = s.CreateRun("ablation")
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports a missing checkpoint", func() {
		_, err := s.BestCheckpoint(run)
		Expect(err).To(MatchError(ErrNoCheckpoint))
	})

	It("round-trips state and optimizer moments", func() {
		path, err := s.SaveCheckpoint(run, LastCheckpoint, ckpt(2, 0.75))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(BeARegularFile())
		Expect(path + ".tmp").NotTo(BeAnExistingFile())

		ck, err := LoadCheckpoint(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(ck.Epoch).To(Equal(2))
		Expect(ck.StateDict["w"].Data).To(Equal([]float64{0.5, -1}))
		Expect(ck.StateDict["w"].Dims).To(Equal([]int{1, 2}))
		Expect(ck.Optimizer["/adam/v"].Data).To(Equal([]float64{0.01, 0.02}))
		Expect(ck.Model).To(Equal(config.DefaultModelConfig()))
	})

	It("prefers the lowest monitored score, then last.ckpt", func() {
		_, err := s.SaveCheckpoint(run, LastCheckpoint, ckpt(3, 0.1))
		Expect(err).NotTo(HaveOccurred())

		best, err := s.BestCheckpoint(run)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(best)).To(Equal(LastCheckpoint))

		_, err = s.SaveCheckpoint(run, "a-epoch=0.ckpt", ckpt(0, 2.0))
		Expect(err).NotTo(HaveOccurred())
		_, err = s.SaveCheckpoint(run, "a-epoch=1.ckpt", ckpt(1, 0.5))
		Expect(err).NotTo(HaveOccurred())

		best, err = s.BestCheckpoint(run)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(best)).To(Equal("a-epoch=1.ckpt"))

		paths, err := s.Checkpoints(run)
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(HaveLen(2))
	})

	It("fails on a corrupt file", func() {
		path := filepath.Join(run.CheckpointDir(), "bad.ckpt")
		Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())
		_, err := LoadCheckpoint(path)
		Expect(err).To(HaveOccurred())
	})

	It("reports an undecodable checkpoint instead of skipping it", func() {
		_, err := s.SaveCheckpoint(run, "a-epoch=0.ckpt", ckpt(0, 2.0))
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(run.CheckpointDir(), "a-epoch=1.ckpt"), []byte("{"), 0644)).To(Succeed())

		_, err = s.BestCheckpoint(run)
		Expect(err).To(MatchError(ErrCheckpoint))
		Expect(err.Error()).To(ContainSubstring("a-epoch=1.ckpt"))
	})
})
