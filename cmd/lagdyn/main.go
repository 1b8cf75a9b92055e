package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/lagdyn/internal/analysis"
	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/dataset"
	"github.com/san-kum/lagdyn/internal/export"
	"github.com/san-kum/lagdyn/internal/model"
	"github.com/san-kum/lagdyn/internal/optim"
	"github.com/san-kum/lagdyn/internal/storage"
	"github.com/san-kum/lagdyn/internal/train"
	"github.com/san-kum/lagdyn/internal/viz"
)

var (
	logRoot string

	// train
	name          string
	tPred         int
	solver        string
	batchSize     int
	learningRate  float64
	maxEpochs     int
	maxSteps      int
	seed          int64
	deterministic bool
	resume        string
	logEvery      int
	dataPath      string
	configFile    string
	preset        string
	live          bool

	// generate
	outPath      string
	trajectories int
	genSteps     int
	imageSize    int
	dt           float64
	integrator   string
	maxTorque    float64

	// plot, reconstruct, analyze
	pngPath   string
	svgPath   string
	jsonPath  string
	gifScale  int
	sample    int
	theta     float64
	omega     float64
	control   float64
	horizon   int
	phasePlot bool
	gifPath   string
	rollout   string

	// sweep
	sweepLRs     []float64
	sweepBatches []int
	sweepSteps   int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags bind to the package variables,
// so every call resets them to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lagdyn",
		Short:        "Lagrangian latent dynamics from pendulum images",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logRoot, "default_root_dir", config.DefaultLogRoot, "log root directory")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train the Lagrangian caAE on an image dataset",
		Args:  cobra.NoArgs,
		RunE:  runTrain,
	}
	addTrainFlags(trainCmd)
	trainCmd.Flags().BoolVar(&deterministic, "deterministic", true, "deterministic training")
	trainCmd.Flags().StringVar(&resume, "resume_from_checkpoint", "", "checkpoint to resume from")
	trainCmd.Flags().IntVar(&maxEpochs, "max_epochs", 0, "stop after this many epochs (0 = unbounded)")
	trainCmd.Flags().IntVar(&maxSteps, "max_steps", 0, "stop after this many optimizer steps (0 = unbounded)")
	trainCmd.Flags().BoolVar(&live, "live", false, "show the live dashboard")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "synthesize a pendulum image dataset",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}
	defaults := config.DefaultDataConfig()
	generateCmd.Flags().StringVar(&outPath, "out", config.DefaultDataPath, "output dataset file")
	generateCmd.Flags().IntVar(&trajectories, "trajectories", defaults.Trajectories, "number of trajectories")
	generateCmd.Flags().IntVar(&genSteps, "steps", defaults.Steps, "frames per trajectory")
	generateCmd.Flags().IntVar(&imageSize, "size", defaults.Size, "image side in pixels")
	generateCmd.Flags().Float64Var(&dt, "dt", defaults.Dt, "time between frames")
	generateCmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	generateCmd.Flags().StringVar(&integrator, "integrator", defaults.Integrator, "integrator for the true pendulum")
	generateCmd.Flags().Float64Var(&maxTorque, "max_torque", defaults.MaxTorque, "largest constant torque")
	generateCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	generateCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the loss curve of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "also write the curve to this PNG file")

	reconstructCmd := &cobra.Command{
		Use:   "reconstruct [checkpoint|run_id]",
		Short: "write a GIF of ground truth next to the reconstruction",
		Args:  cobra.ExactArgs(1),
		RunE:  runReconstruct,
	}
	reconstructCmd.Flags().StringVar(&dataPath, "data", config.DefaultDataPath, "dataset file")
	reconstructCmd.Flags().StringVar(&gifPath, "out", "reconstruction.gif", "output GIF")
	reconstructCmd.Flags().IntVar(&gifScale, "scale", 4, "pixel scale")
	reconstructCmd.Flags().IntVar(&sample, "sample", 0, "window index in the dataset")
	reconstructCmd.Flags().StringVar(&svgPath, "svg", "", "also write the learned content image as SVG")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [checkpoint|run_id]",
		Short: "roll out the learned dynamics and report the oscillation frequency",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().Float64Var(&theta, "theta", 0.5, "initial angle")
	analyzeCmd.Flags().Float64Var(&omega, "omega", 0.0, "initial angular velocity")
	analyzeCmd.Flags().Float64Var(&control, "u", 0.0, "constant control input")
	analyzeCmd.Flags().Float64Var(&dt, "dt", defaults.Dt, "rollout step")
	analyzeCmd.Flags().IntVar(&horizon, "steps", 400, "rollout steps")
	analyzeCmd.Flags().StringVar(&rollout, "solver", "rk4", "rollout solver")
	analyzeCmd.Flags().BoolVar(&phasePlot, "phase", false, "print the phase portrait")
	analyzeCmd.Flags().StringVar(&pngPath, "png", "", "write the phase portrait to this PNG file")
	analyzeCmd.Flags().StringVar(&svgPath, "svg", "", "write the phase portrait to this SVG file")
	analyzeCmd.Flags().StringVar(&jsonPath, "json", "", "write the rollout as JSON (- for stdout)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search learning rate and batch size with short runs",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addTrainFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepLRs, "lrs", []float64{1e-4, 1e-3, 1e-2}, "learning rates to try")
	sweepCmd.Flags().IntSliceVar(&sweepBatches, "batch_sizes", []int{128, 512}, "batch sizes to try")
	sweepCmd.Flags().IntVar(&sweepSteps, "trial_steps", 50, "optimizer steps per trial")

	presetsCmd := &cobra.Command{
		Use:   "presets [group]",
		Short: "list configuration presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := []string{"train", "generate"}
			if len(args) > 0 {
				groups = args
			}
			for _, g := range groups {
				presets := config.ListPresets(g)
				if len(presets) == 0 {
					fmt.Printf("no presets for group: %s\n", g)
					continue
				}
				fmt.Printf("presets for %s:\n", g)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(trainCmd, generateCmd, runsCmd, plotCmd, reconstructCmd, analyzeCmd, sweepCmd, presetsCmd)
	return rootCmd
}

func addTrainFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&name, "name", config.DefaultName, "experiment name")
	cmd.Flags().IntVar(&tPred, "T_pred", config.DefaultTPred, "prediction horizon in frames")
	cmd.Flags().StringVar(&solver, "solver", config.DefaultSolver, "ODE solver")
	cmd.Flags().IntVar(&batchSize, "batch_size", config.DefaultBatchSize, "batch size")
	cmd.Flags().Float64Var(&learningRate, "learning_rate", config.DefaultLearningRate, "Adam learning rate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&logEvery, "log_every_n_steps", config.DefaultLogEvery, "metrics logging interval")
	cmd.Flags().StringVar(&dataPath, "data", config.DefaultDataPath, "dataset file")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// buildConfig layers defaults, preset, config file and changed flags.
func buildConfig(cmd *cobra.Command, group string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(group, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(group))
		}
		cfg.Apply(p)
	}

	if configFile != "" {
		var err error
		if cfg, err = config.LoadOnto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	changed := func(n string) bool { return flags.Lookup(n) != nil && flags.Changed(n) }
	if changed("name") {
		cfg.Name = name
	}
	if changed("T_pred") {
		cfg.TPred = tPred
	}
	if changed("solver") {
		cfg.Solver = solver
	}
	if changed("batch_size") {
		cfg.BatchSize = batchSize
	}
	if changed("learning_rate") {
		cfg.LearningRate = learningRate
	}
	if changed("max_epochs") {
		cfg.MaxEpochs = maxEpochs
	}
	if changed("max_steps") {
		cfg.MaxSteps = maxSteps
	}
	if changed("seed") {
		cfg.Seed = seed
		cfg.Data.Seed = seed
	}
	if changed("deterministic") {
		cfg.Deterministic = deterministic
	}
	if changed("log_every_n_steps") {
		cfg.LogEvery = logEvery
	}
	if changed("resume_from_checkpoint") {
		cfg.Resume = resume
	}
	if changed("data") {
		cfg.DataPath = dataPath
	}
	if changed("default_root_dir") {
		cfg.LogRoot = logRoot
	}

	if changed("out") {
		cfg.DataPath = outPath
	}
	if changed("trajectories") {
		cfg.Data.Trajectories = trajectories
	}
	if changed("steps") {
		cfg.Data.Steps = genSteps
	}
	if changed("size") {
		cfg.Data.Size = imageSize
	}
	if changed("dt") {
		cfg.Data.Dt = dt
	}
	if changed("integrator") {
		cfg.Data.Integrator = integrator
	}
	if changed("max_torque") {
		cfg.Data.MaxTorque = maxTorque
	}
	return cfg, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, "train")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ds, err := dataset.Load(cfg.DataPath, cfg.TPred)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	st := storage.New(cfg.LogRoot)
	if err := st.Init(); err != nil {
		return err
	}

	tr, err := train.New(cfg, ds, st)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("training %s on %d windows (T_pred=%d, solver=%s, batch_size=%d)\n",
		cfg.Name, ds.Len(), cfg.TPred, cfg.Solver, cfg.BatchSize)
	start := time.Now()

	if live {
		return trainLive(ctx, cfg, tr)
	}

	tr.Observe(viz.Console{W: os.Stdout, Every: cfg.LogEvery})
	if _, err := tr.Fit(ctx); err != nil {
		return err
	}
	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

type fitResult struct {
	summary train.Summary
	err     error
}

func trainLive(ctx context.Context, cfg *config.Config, tr *train.Trainer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(viz.NewDashboard(cfg.Name, cfg.MaxEpochs, cfg.MaxSteps, cancel), tea.WithAltScreen())
	tr.Observe(viz.ProgramObserver{P: p})

	done := make(chan fitResult, 1)
	go func() {
		s, err := tr.Fit(ctx)
		done <- fitResult{s, err}
		p.Send(viz.DoneMsg{Summary: s, Err: err})
	}()

	_, runErr := p.Run()
	cancel()
	res := <-done
	if runErr != nil {
		return runErr
	}
	if res.err != nil {
		return res.err
	}
	viz.Console{W: os.Stdout}.OnEnd(res.summary)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, "generate")
	if err != nil {
		return err
	}
	dc := cfg.Data
	if !cmd.Flags().Changed("seed") && dc.Seed == 0 {
		dc.Seed = cfg.Seed
	}

	fmt.Printf("generating %d trajectories of %d frames (%dx%d, dt=%g)...\n",
		dc.Trajectories, dc.Steps, dc.Size, dc.Size, dc.Dt)
	start := time.Now()

	f, err := dataset.Generate(dc, rand.New(rand.NewSource(dc.Seed)))
	if err != nil {
		return err
	}
	if err := dataset.Save(cfg.DataPath, f); err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("wrote %s\n", cfg.DataPath)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(logRoot)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tT_PRED\tSOLVER\tSTEPS\tBEST_LOSS")

	for _, run := range runs {
		best := "-"
		if v, ok := run.Metrics["best_loss"]; ok {
			best = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%.0f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.HParams["T_pred"],
			run.HParams["solver"],
			run.Metrics["global_step"],
			best,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(logRoot)
	rows, err := st.LoadMetrics(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no metrics logged for %s", runID)
	}

	steps := make([]int, len(rows))
	recon := make([]float64, len(rows))
	total := make([]float64, len(rows))
	for i, r := range rows {
		steps[i], recon[i], total[i] = r.Step, r.ReconLoss, r.TrainLoss
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("rows: %d (steps %d..%d)\n\n", len(rows), steps[0], steps[len(steps)-1])

	graph := asciigraph.PlotMany([][]float64{recon, total},
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption("recon_loss (blue), train_loss (red) vs logged step"),
	)
	fmt.Println(graph)

	if pngPath != "" {
		if err := export.LossPNG(pngPath, steps, recon, total); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", pngPath)
	}
	return nil
}

// resolveCheckpoint accepts a checkpoint file or a run ID, for which the
// best checkpoint is used.
func resolveCheckpoint(arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}
	st := storage.New(logRoot)
	run, err := st.OpenRun(arg)
	if err != nil {
		return "", fmt.Errorf("%s is neither a checkpoint nor a run: %w", arg, err)
	}
	return st.BestCheckpoint(run)
}

func loadModel(arg string) (*model.Model, *storage.Checkpoint, string, error) {
	path, err := resolveCheckpoint(arg)
	if err != nil {
		return nil, nil, "", err
	}
	ck, err := storage.LoadCheckpoint(path)
	if err != nil {
		return nil, nil, "", err
	}
	mc := ck.Model
	if mc.EncoderHidden == 0 {
		mc = config.DefaultModelConfig()
	}
	m, err := model.New(mc, ck.ImageSize, rand.New(rand.NewSource(0)))
	if err != nil {
		return nil, nil, "", err
	}
	if err := m.LoadStateDict(ck.StateDict); err != nil {
		return nil, nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return m, ck, path, nil
}

func hparamInt(hp map[string]any, key string, fallback int) int {
	switch v := hp[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func hparamString(hp map[string]any, key, fallback string) string {
	if v, ok := hp[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	m, ck, path, err := loadModel(args[0])
	if err != nil {
		return err
	}
	tp := hparamInt(ck.HParams, "T_pred", config.DefaultTPred)
	method := hparamString(ck.HParams, "solver", config.DefaultSolver)

	ds, err := dataset.Load(dataPath, tp)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if ds.Size != m.Size {
		return fmt.Errorf("dataset images are %dx%d, model expects %dx%d", ds.Size, ds.Size, m.Size, m.Size)
	}
	if sample < 0 || sample >= ds.Len() {
		return fmt.Errorf("sample %d out of range [0, %d)", sample, ds.Len())
	}

	s := ds.Samples[sample]
	x, u := ds.Batch(sample).Tensors()
	out, err := m.Evaluate(x, u, ds.TEval(), method)
	if err != nil {
		return err
	}

	if err := viz.WriteGIF(gifPath, s.Frames, out.Frames(), ds.Size, gifScale); err != nil {
		return err
	}

	fmt.Printf("checkpoint: %s (epoch %d, step %d)\n", path, ck.Epoch, ck.GlobalStep)
	fmt.Printf("sample %d: u=%.3f recon_loss=%.4f\n", sample, s.U, out.Loss.Recon)
	fmt.Printf("wrote %s\n", gifPath)

	if svgPath != "" {
		content, err := m.Content()
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, []byte(export.ImageSVG(content, m.Size, 8)), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	m, _, path, err := loadModel(args[0])
	if err != nil {
		return err
	}

	res, err := analysis.Rollout(m.ODE, theta, omega, control, dt, horizon, rollout)
	if err != nil {
		return err
	}

	if jsonPath == "-" {
		return export.WriteJSON(os.Stdout, export.NewRolloutData(path, rollout, dt, control, res))
	}

	fmt.Printf("rollout analysis: %s\n", path)
	fmt.Printf("q0=%.3f q_dot0=%.3f u=%.3f dt=%g steps=%d solver=%s\n\n", theta, omega, control, dt, horizon, rollout)

	graph := asciigraph.Plot(res.Angles,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("latent angle q(t)"),
	)
	fmt.Println(graph)
	fmt.Println()

	ps := analysis.PowerSpectrum(res.Angles)
	if len(ps) > 4 {
		plotData := ps[1 : len(ps)/2]
		graph = asciigraph.Plot(plotData,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum (q)"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	freq := analysis.DominantFrequency(res.Angles, dt)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	if drift := res.EnergyDrift; !math.IsNaN(drift) {
		fmt.Printf("energy drift: %.2e\n", drift)
	}

	if phasePlot {
		fmt.Println()
		fmt.Print(analysis.PhasePortraitToASCII(analysis.PhasePortrait(res), 80, 24))
	}
	if pngPath != "" {
		if err := export.PhasePNG(pngPath, res.Angles, res.Velocities); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", pngPath)
	}
	if svgPath != "" {
		svg := export.PathSVG(res.Angles, res.Velocities, 600, 600, "#00ff88")
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	if jsonPath != "" {
		if err := export.ExportJSON(jsonPath, export.NewRolloutData(path, rollout, dt, control, res)); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", jsonPath)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd, "train")
	if err != nil {
		return err
	}
	base.MaxEpochs = 0
	base.MaxSteps = sweepSteps
	base.Resume = ""
	if err := base.Validate(); err != nil {
		return err
	}

	ds, err := dataset.Load(base.DataPath, base.TPred)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	st := storage.New(base.LogRoot)
	if err := st.Init(); err != nil {
		return err
	}

	batches := make([]float64, len(sweepBatches))
	for i, b := range sweepBatches {
		batches[i] = float64(b)
	}
	grid, err := optim.NewGridSearch([]string{"learning_rate", "batch_size"}, [][]float64{sweepLRs, batches})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("sweeping %d configurations, %d steps each\n", grid.Size(), sweepSteps)
	best, score, trials, err := grid.Search(ctx, func(ctx context.Context, p map[string]float64) (float64, error) {
		cfg := *base
		cfg.LearningRate = p["learning_rate"]
		cfg.BatchSize = int(p["batch_size"])
		cfg.Name = fmt.Sprintf("%s-sweep-lr=%g-bs=%d", base.Name, cfg.LearningRate, cfg.BatchSize)

		tr, err := train.New(&cfg, ds, st)
		if err != nil {
			return 0, err
		}
		s, err := tr.Fit(ctx)
		if err != nil {
			return 0, err
		}
		fmt.Printf("  %s: best loss %.4f\n", s.RunID, s.BestLoss)
		return s.BestLoss, nil
	})

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEARNING_RATE\tBATCH_SIZE\tBEST_LOSS")
	for _, t := range trials {
		result := fmt.Sprintf("%.4f", t.Score)
		if t.Err != nil {
			result = "error: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%g\t%.0f\t%s\n", t.Params["learning_rate"], t.Params["batch_size"], result)
	}
	w.Flush()

	if errors.Is(err, context.Canceled) {
		fmt.Println("sweep interrupted")
	} else if err != nil {
		return err
	}
	if best != nil {
		fmt.Printf("\nbest: learning_rate=%g batch_size=%.0f loss=%.4f\n", best["learning_rate"], best["batch_size"], score)
	}
	return nil
}
