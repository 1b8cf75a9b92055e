// Package train fits the latent Lagrangian model to image windows.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	gcontext "github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/dataset"
	"github.com/san-kum/lagdyn/internal/metrics"
	"github.com/san-kum/lagdyn/internal/model"
	"github.com/san-kum/lagdyn/internal/nn"
	"github.com/san-kum/lagdyn/internal/storage"
	"github.com/san-kum/lagdyn/internal/tensor"
)

const monitor = "loss"

// maxStepGraphs bounds the compiled training steps kept alive.
const maxStepGraphs = 16

type Trainer struct {
	cfg    *config.Config
	model  *model.Model
	opt    optimizers.Interface
	steps  *tensor.ExecCache
	data   *dataset.Dataset
	loader *dataset.Loader
	store  *storage.Store
	tEval  []float64

	observers []Observer

	epoch      int
	globalStep int
	best       float64
	bestPath   string
	run        *storage.Run
	pending    []storage.MetricRow
}

// StepResult carries the scalar losses of one optimizer step.
type StepResult struct {
	ReconLoss float64
	TrainLoss float64
}

func New(cfg *config.Config, ds *dataset.Dataset, store *storage.Store) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds.T != cfg.TPred+1 {
		return nil, fmt.Errorf("dataset windows have %d frames, T_pred=%d needs %d", ds.T, cfg.TPred, cfg.TPred+1)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	m, err := model.New(cfg.Model, ds.Size, rng)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:    cfg,
		model:  m,
		opt:    nn.NewAdam(cfg.LearningRate),
		steps:  tensor.NewExecCache(maxStepGraphs),
		data:   ds,
		loader: dataset.NewLoader(ds, cfg.BatchSize, true, rng),
		store:  store,
		tEval:  ds.TEval(),
		best:   math.Inf(1),
	}

	if cfg.Resume != "" {
		if err := t.resume(cfg.Resume); err != nil {
			return nil, fmt.Errorf("resume from %s: %w", cfg.Resume, err)
		}
	}
	return t, nil
}

func (t *Trainer) resume(path string) error {
	ck, err := storage.LoadCheckpoint(path)
	if err != nil {
		return err
	}
	if ck.ImageSize != 0 && ck.ImageSize != t.data.Size {
		return fmt.Errorf("checkpoint image size %d, dataset %d", ck.ImageSize, t.data.Size)
	}
	if err := t.model.LoadStateDict(ck.StateDict); err != nil {
		return err
	}
	if err := nn.LoadOptimizerState(t.model.Context(), ck.Optimizer); err != nil {
		return err
	}
	t.epoch = ck.Epoch + 1
	t.globalStep = ck.GlobalStep
	if !math.IsNaN(ck.Score) && !math.IsInf(ck.Score, 0) && ck.Score < math.MaxFloat64 {
		t.best = ck.Score
	}
	return nil
}

func (t *Trainer) Observe(o Observer) { t.observers = append(t.observers, o) }

func (t *Trainer) Model() *model.Model { return t.model }

func (t *Trainer) GlobalStep() int { return t.globalStep }

func (t *Trainer) Epoch() int { return t.epoch }

// BestLoss is the lowest monitored epoch loss seen so far, +Inf before the
// first finite one.
func (t *Trainer) BestLoss() float64 { return t.best }

// Step runs forward, loss, backward and one Adam update on b.
func (t *Trainer) Step(b dataset.Batch) (StepResult, error) {
	x, u := b.Tensors()
	if err := t.model.CheckBatch(x, u, t.tEval); err != nil {
		return StepResult{}, err
	}
	plan, stepper, err := t.model.Plan(x, u, t.tEval, t.cfg.Solver)
	if err != nil {
		return StepResult{}, err
	}
	dt0 := t.tEval[1] - t.tEval[0]
	exec, err := t.steps.Get(t.cfg.Solver+"|"+plan.Key(), func() (*tensor.Exec, error) {
		return tensor.NewExec(t.model.Context(), func(ctx *gcontext.Context, in []*Node) []*Node {
			f := t.model.Build(in[0], in[1], in[2], dt0, plan, stepper)
			loss := t.model.LossOf(f, in[0])
			t.opt.UpdateGraph(ctx, in[0].Graph(), loss.Total)
			return []*Node{loss.Recon, loss.Total}
		})
	})
	if err != nil {
		return StepResult{}, err
	}
	outs, err := exec.Call(x, u, plan.DtsTensor())
	if err != nil {
		return StepResult{}, err
	}
	t.globalStep++

	return StepResult{ReconLoss: tensor.Item(outs[0]), TrainLoss: tensor.Item(outs[1])}, nil
}

func (t *Trainer) stepLimitReached() bool {
	return t.cfg.MaxSteps > 0 && t.globalStep >= t.cfg.MaxSteps
}

func (t *Trainer) epochLimitReached() bool {
	return t.cfg.MaxEpochs > 0 && t.epoch >= t.cfg.MaxEpochs
}

// Fit trains until max_epochs, max_steps or ctx cancellation. Cancellation
// saves last.ckpt and returns a summary without error.
func (t *Trainer) Fit(ctx context.Context) (Summary, error) {
	run, err := t.store.CreateRun(t.cfg.Name)
	if err != nil {
		return Summary{}, err
	}
	t.run = run
	if err := t.writeMetadata(nil); err != nil {
		return Summary{}, err
	}

	summary := Summary{RunID: run.ID()}
	epochLoss := metrics.NewMean(monitor)
	epochRecon := metrics.NewMean("recon_loss")

	for !t.epochLimitReached() && !t.stepLimitReached() {
		t.loader.Reset()
		epochLoss.Reset()
		epochRecon.Reset()

		batch := 0
		for b, ok := t.loader.Next(); ok; b, ok = t.loader.Next() {
			if ctx.Err() != nil {
				return t.interrupt(summary)
			}
			res, err := t.Step(b)
			if err != nil {
				return summary, err
			}
			batch++
			epochLoss.Observe(res.TrainLoss)
			epochRecon.Observe(res.ReconLoss)
			if err := t.logStep(res); err != nil {
				return summary, err
			}
			for _, o := range t.observers {
				o.OnStep(StepEvent{
					Epoch: t.epoch, Step: t.globalStep,
					Batch: batch, Batches: t.loader.Batches(),
					ReconLoss: res.ReconLoss, TrainLoss: res.TrainLoss,
				})
			}
			if t.stepLimitReached() {
				break
			}
		}

		if err := t.endEpoch(epochLoss.Value(), epochRecon.Value()); err != nil {
			return summary, err
		}
		t.epoch++
	}

	summary.Reason = StopMaxEpochs
	if t.stepLimitReached() {
		summary.Reason = StopMaxSteps
	}
	return t.finish(summary)
}

// logStep writes a metrics row every log_every_n_steps steps.
func (t *Trainer) logStep(res StepResult) error {
	if t.cfg.LogEvery > 0 && t.globalStep%t.cfg.LogEvery != 0 {
		return nil
	}
	t.pending = append(t.pending, storage.MetricRow{
		Epoch: t.epoch, Step: t.globalStep,
		ReconLoss: res.ReconLoss, TrainLoss: res.TrainLoss,
	})
	return t.flushMetrics()
}

func (t *Trainer) flushMetrics() error {
	if len(t.pending) == 0 {
		return nil
	}
	err := t.store.AppendMetrics(t.run, t.pending)
	t.pending = t.pending[:0]
	return err
}

// endEpoch is the checkpoint callback: keep the single best epoch by the
// monitored loss and refresh last.ckpt.
func (t *Trainer) endEpoch(loss, recon float64) error {
	content, err := t.model.Content()
	if err != nil {
		return err
	}
	ev := EpochEvent{
		Epoch: t.epoch, Step: t.globalStep, Loss: loss, ReconLoss: recon,
		Content: content, Size: t.data.Size,
	}

	if !math.IsNaN(loss) && !math.IsInf(loss, 0) && loss < t.best {
		name := fmt.Sprintf("%s-T_p=%d-epoch=%d.ckpt", t.cfg.Name, t.cfg.TPred, t.epoch)
		path, err := t.store.SaveCheckpoint(t.run, name, t.checkpoint(t.epoch, loss))
		if err != nil {
			return err
		}
		if t.bestPath != "" && t.bestPath != path && filepath.Dir(t.bestPath) == t.run.CheckpointDir() {
			os.Remove(t.bestPath)
		}
		t.best, t.bestPath = loss, path
		ev.Checkpoint = path
	}
	if _, err := t.store.SaveCheckpoint(t.run, storage.LastCheckpoint, t.checkpoint(t.epoch, loss)); err != nil {
		return err
	}

	ev.Best = t.best
	for _, o := range t.observers {
		o.OnEpoch(ev)
	}
	return nil
}

func (t *Trainer) checkpoint(epoch int, score float64) *storage.Checkpoint {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = math.MaxFloat64
	}
	return &storage.Checkpoint{
		Epoch:      epoch,
		GlobalStep: t.globalStep,
		Monitor:    monitor,
		Score:      score,
		ImageSize:  t.data.Size,
		Model:      t.cfg.Model,
		HParams:    t.cfg.HParams(),
		StateDict:  t.model.StateDict(),
		Optimizer:  nn.OptimizerState(t.model.Context(), t.model.Params()),
	}
}

func (t *Trainer) interrupt(summary Summary) (Summary, error) {
	summary.Reason = StopInterrupted
	if _, err := t.store.SaveCheckpoint(t.run, storage.LastCheckpoint, t.checkpoint(t.epoch-1, t.best)); err != nil {
		return summary, err
	}
	return t.finish(summary)
}

func (t *Trainer) finish(summary Summary) (Summary, error) {
	if err := t.flushMetrics(); err != nil {
		return summary, err
	}
	summary.Epochs = t.epoch
	summary.Steps = t.globalStep
	summary.BestLoss = t.best
	summary.BestCheckpoint = t.bestPath
	summary.LastCheckpoint = filepath.Join(t.run.CheckpointDir(), storage.LastCheckpoint)

	final := map[string]float64{"global_step": float64(t.globalStep), "epochs": float64(t.epoch)}
	if !math.IsInf(t.best, 1) {
		final["best_loss"] = t.best
	}
	if err := t.writeMetadata(final); err != nil {
		return summary, err
	}

	for _, o := range t.observers {
		o.OnEnd(summary)
	}
	return summary, nil
}

func (t *Trainer) writeMetadata(final map[string]float64) error {
	return t.store.WriteMetadata(t.run, storage.RunMetadata{
		Timestamp: time.Now(),
		HParams:   t.cfg.HParams(),
		Metrics:   final,
	})
}
