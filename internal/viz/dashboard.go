package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/lagdyn/internal/train"
)

const historyCapacity = 600

type (
	StepMsg  train.StepEvent
	EpochMsg train.EpochEvent
	DoneMsg  struct {
		Summary train.Summary
		Err     error
	}
)

// Dashboard is the live training view.
type Dashboard struct {
	name      string
	maxEpochs int
	maxSteps  int
	cancel    context.CancelFunc

	step        train.StepEvent
	losses      []float64
	epochLosses []float64
	best        float64
	lastCkpt    string
	content     []float64
	size        int

	stopping bool
	done     *DoneMsg
	showHelp bool
}

func NewDashboard(name string, maxEpochs, maxSteps int, cancel context.CancelFunc) Dashboard {
	return Dashboard{
		name:      name,
		maxEpochs: maxEpochs,
		maxSteps:  maxSteps,
		cancel:    cancel,
		losses:    make([]float64, 0, historyCapacity),
	}
}

func (d Dashboard) Init() tea.Cmd { return nil }

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if d.done != nil {
				return d, tea.Quit
			}
			if !d.stopping && d.cancel != nil {
				d.cancel()
			}
			d.stopping = true
		case "t":
			NextTheme()
		case "?":
			d.showHelp = !d.showHelp
		}
	case StepMsg:
		d.step = train.StepEvent(msg)
		if len(d.losses) == historyCapacity {
			d.losses = d.losses[1:]
		}
		d.losses = append(d.losses, msg.TrainLoss)
	case EpochMsg:
		d.epochLosses = append(d.epochLosses, msg.Loss)
		d.best = msg.Best
		if msg.Checkpoint != "" {
			d.lastCkpt = msg.Checkpoint
		}
		d.content, d.size = msg.Content, msg.Size
	case DoneMsg:
		d.done = &msg
		return d, tea.Quit
	}
	return d, nil
}

func (d Dashboard) status() string {
	switch {
	case d.done != nil && d.done.Err != nil:
		return statusStyle(CurrentTheme.Error).Render("FAILED: " + d.done.Err.Error())
	case d.done != nil:
		return statusStyle(CurrentTheme.Success).Render("DONE (" + string(d.done.Summary.Reason) + ")")
	case d.stopping:
		return statusStyle(CurrentTheme.Warning).Render("STOPPING")
	}
	return statusStyle(CurrentTheme.Success).Render("TRAINING")
}

func (d Dashboard) View() string {
	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(d.name)) + "\n")
	s.WriteString(d.status() + "\n\n")

	progress := 0.0
	if d.step.Batches > 0 {
		progress = float64(d.step.Batch) / float64(d.step.Batches)
	}
	s.WriteString(labelStyle().Render("Epoch") + valueStyle().Render(d.limit(d.step.Epoch, d.maxEpochs)) + "\n")
	s.WriteString(labelStyle().Render("Step") + valueStyle().Render(d.limit(d.step.Step, d.maxSteps)) + "\n")
	s.WriteString(labelStyle().Render("Batch") + ProgressBar(progress, 24) + fmt.Sprintf(" %d/%d", d.step.Batch, d.step.Batches) + "\n")
	s.WriteString(labelStyle().Render("recon_loss") + accentStyle().Render(fmt.Sprintf("%.4f", d.step.ReconLoss)) + "\n")
	s.WriteString(labelStyle().Render("train_loss") + accentStyle().Render(fmt.Sprintf("%.4f", d.step.TrainLoss)) + "\n")
	if len(d.epochLosses) > 0 {
		s.WriteString(labelStyle().Render("best loss") + valueStyle().Render(fmt.Sprintf("%.4f", d.best)) + "\n")
		s.WriteString(labelStyle().Render("epochs") + valueStyle().Render(Sparkline(d.epochLosses, 30)) + "\n")
	}
	if d.lastCkpt != "" {
		s.WriteString(labelStyle().Render("checkpoint") + valueStyle().Render(d.lastCkpt) + "\n")
	}

	if pts := finite(d.losses); len(pts) > 1 {
		chart := asciigraph.Plot(pts, asciigraph.Height(6), asciigraph.Width(50), asciigraph.Caption("train_loss"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	s.WriteString(helpStyle.Render("Q:Stop  T:Theme  ?:Help"))

	main := panelStyle.Render(s.String())
	if len(d.content) > 0 {
		preview := headerStyle().Render("CONTENT") + "\n" + Thumbnail(d.content, d.size)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, panelStyle.Render(preview))
	}
	if d.showHelp {
		return `
  Q  stop training, save last.ckpt, quit
  T  cycle themes
  ?  toggle this help
` + "\n" + main
	}
	return main
}

func (d Dashboard) limit(v, bound int) string {
	if bound > 0 {
		return fmt.Sprintf("%d / %d", v, bound)
	}
	return fmt.Sprintf("%d", v)
}

// ProgramObserver forwards training events to a running program.
type ProgramObserver struct {
	P *tea.Program
}

func (o ProgramObserver) OnStep(e train.StepEvent)   { o.P.Send(StepMsg(e)) }
func (o ProgramObserver) OnEpoch(e train.EpochEvent) { o.P.Send(EpochMsg(e)) }
func (o ProgramObserver) OnEnd(train.Summary)        {}
