package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/san-kum/lagdyn/internal/config"
)

// parse resolves args to a subcommand, parses its flags and merges the
// layered config the way RunE does.
func parse(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd, rest, err := newRootCmd().Find(args)
	if err != nil {
		t.Fatalf("find %v: %v", args, err)
	}
	if err := cmd.ParseFlags(rest); err != nil {
		t.Fatalf("parse %v: %v", rest, err)
	}
	return buildConfig(cmd, cmd.Name())
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg, err := parse(t, "train")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, config.DefaultConfig()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestBuildConfigPreset(t *testing.T) {
	cfg, err := parse(t, "train", "--preset", "quick")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TPred != 2 || cfg.BatchSize != 64 || cfg.MaxEpochs != 3 {
		t.Errorf("preset not applied: %+v", cfg)
	}
	if cfg.Model.EncoderHidden != 64 || cfg.Model.EncoderActivation != "elu" {
		t.Errorf("preset model overlay wrong: %+v", cfg.Model)
	}
	if cfg.LearningRate != config.DefaultLearningRate {
		t.Errorf("untouched default changed: lr %g", cfg.LearningRate)
	}
}

func TestBuildConfigPrecedence(t *testing.T) {
	path := writeYAML(t, "T_pred: 6\nsolver: rk4\n")

	cfg, err := parse(t, "train", "--preset", "quick", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TPred != 6 || cfg.Solver != "rk4" {
		t.Errorf("yaml should override the preset: T_pred=%d solver=%s", cfg.TPred, cfg.Solver)
	}
	if cfg.BatchSize != 64 {
		t.Errorf("preset value absent from yaml should survive, got batch_size %d", cfg.BatchSize)
	}

	cfg, err = parse(t, "train", "--preset", "quick", "--config", path, "--T_pred", "3", "--batch_size", "8")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TPred != 3 || cfg.BatchSize != 8 {
		t.Errorf("changed flags should win: T_pred=%d batch_size=%d", cfg.TPred, cfg.BatchSize)
	}
	if cfg.Solver != "rk4" {
		t.Errorf("unchanged flag must not reset the yaml value, got solver %s", cfg.Solver)
	}
}

func TestBuildConfigSeed(t *testing.T) {
	cfg, err := parse(t, "train", "--seed", "42")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seed != 42 || cfg.Data.Seed != 42 {
		t.Errorf("expected seed 42 everywhere, got %d and %d", cfg.Seed, cfg.Data.Seed)
	}
}

func TestBuildConfigRootDir(t *testing.T) {
	cfg, err := parse(t, "train", "--default_root_dir", "elsewhere")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogRoot != "elsewhere" {
		t.Errorf("expected log root elsewhere, got %s", cfg.LogRoot)
	}
}

func TestBuildConfigUnknownPreset(t *testing.T) {
	_, err := parse(t, "train", "--preset", "missing")
	if err == nil || !strings.Contains(err.Error(), "unknown preset") {
		t.Errorf("expected unknown preset error, got %v", err)
	}
}

func TestBuildConfigGenerate(t *testing.T) {
	path := writeYAML(t, "generate:\n  trajectories: 10\n  dt: 0.1\n")
	cfg, err := parse(t, "generate", "--preset", "small", "--config", path,
		"--size", "8", "--out", "data.gob", "--seed", "7")
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.Data
	if d.Trajectories != 10 || d.Dt != 0.1 {
		t.Errorf("yaml should override the preset: %+v", d)
	}
	if d.Steps != 10 || d.Integrator != "rk4" {
		t.Errorf("preset values absent from yaml should survive: %+v", d)
	}
	if d.Size != 8 || d.Seed != 7 || cfg.DataPath != "data.gob" {
		t.Errorf("flags not applied: %+v, data %s", d, cfg.DataPath)
	}
}
