package train

// StepEvent is emitted after every optimizer step.
type StepEvent struct {
	Epoch     int
	Step      int
	Batch     int
	Batches   int
	ReconLoss float64
	TrainLoss float64
}

// EpochEvent is emitted after the checkpoint callback ran for an epoch.
type EpochEvent struct {
	Epoch      int
	Step       int
	Loss       float64
	ReconLoss  float64
	Best       float64
	Checkpoint string
	// Content is the learned upright image after the epoch, row-major.
	Content []float64
	Size    int
}

type StopReason string

const (
	StopMaxEpochs   StopReason = "max_epochs"
	StopMaxSteps    StopReason = "max_steps"
	StopInterrupted StopReason = "interrupted"
)

type Summary struct {
	RunID          string
	Epochs         int
	Steps          int
	BestLoss       float64
	BestCheckpoint string
	LastCheckpoint string
	Reason         StopReason
}

type Observer interface {
	OnStep(StepEvent)
	OnEpoch(EpochEvent)
	OnEnd(Summary)
}

// BaseObserver ignores every event; embed it to handle a subset.
type BaseObserver struct{}

func (BaseObserver) OnStep(StepEvent)   {}
func (BaseObserver) OnEpoch(EpochEvent) {}
func (BaseObserver) OnEnd(Summary)      {}

// History records every event, mostly for tests and the sweep command.
type History struct {
	Steps  []StepEvent
	Epochs []EpochEvent
	End    *Summary
}

func (h *History) OnStep(e StepEvent)   { h.Steps = append(h.Steps, e) }
func (h *History) OnEpoch(e EpochEvent) { h.Epochs = append(h.Epochs, e) }
func (h *History) OnEnd(s Summary)      { h.End = &s }
