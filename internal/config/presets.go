package config

import "sort"

// Presets are grouped by purpose; "train" overlays the trainer settings,
// "generate" the dataset generator.
var Presets = map[string]map[string]*Config{
	"train": {
		"ablation": {
			TPred: 4, Solver: "euler", BatchSize: 512, LearningRate: 1e-3,
		},
		"quick": {
			TPred: 2, Solver: "euler", BatchSize: 64, LearningRate: 1e-3, MaxEpochs: 3,
			Model: ModelConfig{EncoderHidden: 64, ContentHidden: 32, DynamicsHidden: 16},
		},
		"smooth": {
			TPred: 4, Solver: "rk4", BatchSize: 256, LearningRate: 5e-4,
		},
		"long-horizon": {
			TPred: 8, Solver: "midpoint", BatchSize: 256, LearningRate: 5e-4,
		},
		"adaptive": {
			TPred: 4, Solver: "dopri5", BatchSize: 128, LearningRate: 1e-3,
		},
	},
	"generate": {
		"small": {
			Data: DataConfig{Trajectories: 32, Steps: 10, Size: 16, Dt: 0.05, Integrator: "rk4", MaxTorque: 2.0},
		},
		"standard": {
			Data: DataConfig{Trajectories: 256, Steps: 20, Size: 32, Dt: 0.05, Integrator: "rk4", MaxTorque: 2.0},
		},
		"unforced": {
			Data: DataConfig{Trajectories: 256, Steps: 20, Size: 32, Dt: 0.05, Integrator: "rk4"},
		},
	},
}

func GetPreset(group, preset string) *Config {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	cfg, ok := groupPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(group string) []string {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(groupPresets))
	for name := range groupPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply overlays the non-zero fields of p onto c.
func (c *Config) Apply(p *Config) {
	if p == nil {
		return
	}
	if p.TPred != 0 {
		c.TPred = p.TPred
	}
	if p.Solver != "" {
		c.Solver = p.Solver
	}
	if p.BatchSize != 0 {
		c.BatchSize = p.BatchSize
	}
	if p.LearningRate != 0 {
		c.LearningRate = p.LearningRate
	}
	if p.MaxEpochs != 0 {
		c.MaxEpochs = p.MaxEpochs
	}
	if p.MaxSteps != 0 {
		c.MaxSteps = p.MaxSteps
	}
	if p.Model.EncoderHidden != 0 {
		c.Model.EncoderHidden = p.Model.EncoderHidden
	}
	if p.Model.ContentHidden != 0 {
		c.Model.ContentHidden = p.Model.ContentHidden
	}
	if p.Model.DynamicsHidden != 0 {
		c.Model.DynamicsHidden = p.Model.DynamicsHidden
	}
	if p.Data.Trajectories != 0 {
		c.Data = p.Data
	}
}
