package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/lagdyn/internal/integrators"
)

const (
	DefaultName         = "ablation-pend-lag-caAE"
	DefaultTPred        = 4
	DefaultSolver       = "euler"
	DefaultBatchSize    = 512
	DefaultLearningRate = 1e-3
	DefaultLogEvery     = 50
	DefaultDataPath     = "datasets/pendulum-image-dataset-train.gob"
	DefaultLogRoot      = "logs"
)

type Config struct {
	Name          string      `yaml:"name"`
	DataPath      string      `yaml:"data"`
	LogRoot       string      `yaml:"default_root_dir"`
	TPred         int         `yaml:"T_pred"`
	Solver        string      `yaml:"solver"`
	BatchSize     int         `yaml:"batch_size"`
	LearningRate  float64     `yaml:"learning_rate"`
	Seed          int64       `yaml:"seed"`
	Deterministic bool        `yaml:"deterministic"`
	MaxEpochs     int         `yaml:"max_epochs"`
	MaxSteps      int         `yaml:"max_steps"`
	LogEvery      int         `yaml:"log_every_n_steps"`
	Resume        string      `yaml:"resume_from_checkpoint,omitempty"`
	Model         ModelConfig `yaml:"model"`
	Data          DataConfig  `yaml:"generate"`
}

// ModelConfig sizes the encoder, content and dynamics networks.
type ModelConfig struct {
	EncoderHidden      int    `yaml:"encoder_hidden"`
	ContentHidden      int    `yaml:"content_hidden"`
	DynamicsHidden     int    `yaml:"dynamics_hidden"`
	EncoderActivation  string `yaml:"encoder_activation"`
	DynamicsActivation string `yaml:"dynamics_activation"`
}

// DataConfig drives the synthetic dataset generator.
type DataConfig struct {
	Trajectories int     `yaml:"trajectories"`
	Steps        int     `yaml:"steps"`
	Size         int     `yaml:"size"`
	Dt           float64 `yaml:"dt"`
	Integrator   string  `yaml:"integrator"`
	MaxTorque    float64 `yaml:"max_torque"`
	Seed         int64   `yaml:"seed"`
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		EncoderHidden:      300,
		ContentHidden:      100,
		DynamicsHidden:     50,
		EncoderActivation:  "elu",
		DynamicsActivation: "tanh",
	}
}

func DefaultDataConfig() DataConfig {
	return DataConfig{
		Trajectories: 256,
		Steps:        20,
		Size:         32,
		Dt:           0.05,
		Integrator:   "rk4",
		MaxTorque:    2.0,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Name:          DefaultName,
		DataPath:      DefaultDataPath,
		LogRoot:       DefaultLogRoot,
		TPred:         DefaultTPred,
		Solver:        DefaultSolver,
		BatchSize:     DefaultBatchSize,
		LearningRate:  DefaultLearningRate,
		Deterministic: true,
		LogEvery:      DefaultLogEvery,
		Model:         DefaultModelConfig(),
		Data:          DefaultDataConfig(),
	}
}

func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto decodes the YAML file at path over base; keys absent from the
// file keep their base values.
func LoadOnto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the trainer cannot run with.
func (c *Config) Validate() error {
	if c.TPred < 1 {
		return fmt.Errorf("T_pred must be at least 1, got %d", c.TPred)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.MaxEpochs < 0 || c.MaxSteps < 0 {
		return fmt.Errorf("max_epochs and max_steps must not be negative")
	}
	if !integrators.Default.Has(c.Solver) {
		return fmt.Errorf("%w: %s", integrators.ErrUnknownSolver, c.Solver)
	}
	if c.Model.EncoderHidden < 1 || c.Model.ContentHidden < 1 || c.Model.DynamicsHidden < 1 {
		return fmt.Errorf("hidden widths must be positive")
	}
	return nil
}

// HParams flattens the settings that identify a run.
func (c *Config) HParams() map[string]any {
	return map[string]any{
		"name":          c.Name,
		"T_pred":        c.TPred,
		"solver":        c.Solver,
		"batch_size":    c.BatchSize,
		"learning_rate": c.LearningRate,
		"seed":          c.Seed,
		"deterministic": c.Deterministic,
		"max_epochs":    c.MaxEpochs,
		"max_steps":     c.MaxSteps,
		"model":         c.Model,
	}
}
