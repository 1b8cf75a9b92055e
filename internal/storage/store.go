package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoCheckpoint indicates a run without any saved checkpoint.
	ErrNoCheckpoint = errors.New("storage: no checkpoint")

	// ErrCheckpoint indicates a checkpoint file that cannot be decoded.
	ErrCheckpoint = errors.New("storage: unreadable checkpoint")
)

const (
	metadataFile  = "metadata.json"
	metricsFile   = "metrics.csv"
	checkpointDir = "checkpoints"
	versionPrefix = "version_"
)

// Store lays runs out as <base>/<name>/version_<n>.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

// Run is one versioned training directory.
type Run struct {
	Name    string
	Version int
	Dir     string
}

func (r *Run) ID() string {
	return fmt.Sprintf("%s/%s%d", r.Name, versionPrefix, r.Version)
}

func (r *Run) CheckpointDir() string {
	return filepath.Join(r.Dir, checkpointDir)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Version   int                `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	HParams   map[string]any     `json:"hparams"`
	Metrics   map[string]float64 `json:"metrics"`
}

// CreateRun allocates the next free version directory for name.
func (s *Store) CreateRun(name string) (*Run, error) {
	nameDir := filepath.Join(s.baseDir, name)
	if err := os.MkdirAll(nameDir, 0755); err != nil {
		return nil, err
	}
	versions, err := versionsOf(nameDir)
	if err != nil {
		return nil, err
	}
	next := 0
	if len(versions) > 0 {
		next = versions[len(versions)-1] + 1
	}
	run := &Run{Name: name, Version: next, Dir: filepath.Join(nameDir, versionPrefix+strconv.Itoa(next))}
	if err := os.MkdirAll(run.CheckpointDir(), 0755); err != nil {
		return nil, err
	}
	return run, nil
}

// OpenRun resolves an ID of the form name/version_n.
func (s *Store) OpenRun(id string) (*Run, error) {
	name, ver, ok := strings.Cut(id, "/")
	if !ok || !strings.HasPrefix(ver, versionPrefix) {
		return nil, fmt.Errorf("invalid run id %q", id)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(ver, versionPrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	dir := filepath.Join(s.baseDir, name, ver)
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return &Run{Name: name, Version: n, Dir: dir}, nil
}

func versionsOf(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var versions []int
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), versionPrefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), versionPrefix)); err == nil {
			versions = append(versions, n)
		}
	}
	sort.Ints(versions)
	return versions, nil
}

func (s *Store) WriteMetadata(run *Run, meta RunMetadata) error {
	meta.ID = run.ID()
	meta.Name = run.Name
	meta.Version = run.Version

	metaFile, err := os.Create(filepath.Join(run.Dir, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (s *Store) List() ([]RunMetadata, error) {
	names, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range names {
		if !entry.IsDir() {
			continue
		}
		versions, err := versionsOf(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, v := range versions {
			meta, err := s.Load(fmt.Sprintf("%s/%s%d", entry.Name(), versionPrefix, v))
			if err != nil {
				continue
			}
			runs = append(runs, *meta)
		}
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// MetricRow is one logged training step.
type MetricRow struct {
	Epoch     int
	Step      int
	ReconLoss float64
	TrainLoss float64
}

var metricsHeader = []string{"epoch", "step", "recon_loss", "train_loss"}

// AppendMetrics adds rows to the run's metrics.csv, writing the header on
// first use.
func (s *Store) AppendMetrics(run *Run, rows []MetricRow) error {
	path := filepath.Join(run.Dir, metricsFile)
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if fresh {
		if err := w.Write(metricsHeader); err != nil {
			return err
		}
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Epoch),
			strconv.Itoa(r.Step),
			strconv.FormatFloat(r.ReconLoss, 'g', -1, 64),
			strconv.FormatFloat(r.TrainLoss, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) LoadMetrics(runID string) ([]MetricRow, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(runID), metricsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]MetricRow, 0, len(records))
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < len(metricsHeader) {
			continue
		}
		epoch, err1 := strconv.Atoi(record[0])
		step, err2 := strconv.Atoi(record[1])
		recon, err3 := strconv.ParseFloat(record[2], 64)
		total, err4 := strconv.ParseFloat(record[3], 64)
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			continue
		}
		rows = append(rows, MetricRow{Epoch: epoch, Step: step, ReconLoss: recon, TrainLoss: total})
	}

	return rows, nil
}
