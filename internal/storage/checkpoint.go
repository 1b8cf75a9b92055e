package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/lagdyn/internal/config"
	"github.com/san-kum/lagdyn/internal/model"
	"github.com/san-kum/lagdyn/internal/nn"
)

// LastCheckpoint is the file name of the most recent checkpoint.
const LastCheckpoint = "last.ckpt"

type Checkpoint struct {
	Epoch      int                    `json:"epoch"`
	GlobalStep int                    `json:"global_step"`
	Monitor    string                 `json:"monitor"`
	Score      float64                `json:"score"`
	ImageSize  int                    `json:"image_size"`
	Model      config.ModelConfig     `json:"model_config"`
	HParams    map[string]any         `json:"hparams"`
	StateDict  model.StateDict        `json:"state_dict"`
	Optimizer  map[string]nn.VarState `json:"optimizer_state"`
}

func (s *Store) SaveCheckpoint(run *Run, filename string, ck *Checkpoint) (string, error) {
	path := filepath.Join(run.CheckpointDir(), filename)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := json.NewEncoder(file).Encode(ck); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return path, os.Rename(tmp, path)
}

func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ck Checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return &ck, nil
}

// Checkpoints lists the run's checkpoint files other than last.ckpt.
func (s *Store) Checkpoints(run *Run) ([]string, error) {
	entries, err := os.ReadDir(run.CheckpointDir())
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == LastCheckpoint || !strings.HasSuffix(e.Name(), ".ckpt") {
			continue
		}
		paths = append(paths, filepath.Join(run.CheckpointDir(), e.Name()))
	}
	return paths, nil
}

// BestCheckpoint returns the monitored checkpoint with the lowest score,
// falling back to last.ckpt.
func (s *Store) BestCheckpoint(run *Run) (string, error) {
	paths, err := s.Checkpoints(run)
	if err != nil {
		return "", err
	}
	best, bestScore := "", 0.0
	for _, p := range paths {
		ck, err := LoadCheckpoint(p)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrCheckpoint, err)
		}
		if best == "" || ck.Score < bestScore {
			best, bestScore = p, ck.Score
		}
	}
	if best != "" {
		return best, nil
	}
	last := filepath.Join(run.CheckpointDir(), LastCheckpoint)
	if _, err := os.Stat(last); err == nil {
		return last, nil
	}
	return "", fmt.Errorf("%w in %s", ErrNoCheckpoint, run.ID())
}
