package viz

import (
	"fmt"
	"io"
	"math"

	"github.com/san-kum/lagdyn/internal/train"
)

// Console prints progress lines every Every steps and at each epoch end.
type Console struct {
	W     io.Writer
	Every int
}

func (c Console) OnStep(e train.StepEvent) {
	if c.Every > 0 && e.Step%c.Every != 0 {
		return
	}
	fmt.Fprintf(c.W, "%s %s %s %s\n",
		labelStyle().Render(fmt.Sprintf("epoch %d", e.Epoch)),
		labelStyle().Render(fmt.Sprintf("step %d", e.Step)),
		valueStyle().Render(fmt.Sprintf("recon_loss=%.4f", e.ReconLoss)),
		accentStyle().Render(fmt.Sprintf("train_loss=%.4f", e.TrainLoss)))
}

func (c Console) OnEpoch(e train.EpochEvent) {
	line := fmt.Sprintf("epoch %d done: loss=%.4f best=%.4f", e.Epoch, e.Loss, e.Best)
	if e.Checkpoint != "" {
		line += " saved " + e.Checkpoint
	}
	fmt.Fprintln(c.W, headerStyle().UnsetMarginBottom().Render(line))
}

func (c Console) OnEnd(s train.Summary) {
	fmt.Fprintf(c.W, "\nstopped (%s) after %d epochs, %d steps\n", s.Reason, s.Epochs, s.Steps)
	if !math.IsInf(s.BestLoss, 1) {
		fmt.Fprintf(c.W, "best loss: %.4f\n", s.BestLoss)
	}
	if s.BestCheckpoint != "" {
		fmt.Fprintf(c.W, "best checkpoint: %s\n", s.BestCheckpoint)
	}
	fmt.Fprintf(c.W, "last checkpoint: %s\n", s.LastCheckpoint)
	fmt.Fprintf(c.W, "run: %s\n", s.RunID)
}
