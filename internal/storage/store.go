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
	"time"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/sim"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	statesFile   = "states.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scene      string             `json:"scene"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Material   string             `json:"material"`
	StepsTaken int                `json:"steps_taken"`
	Steps      []sim.Step         `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

func newMetadata(id string, cfg *config.Config, result *sim.Result) RunMetadata {
	return RunMetadata{
		ID:         id,
		Scene:      cfg.Scene,
		Timestamp:  time.Now(),
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.TimeIntegrator,
		Material:   cfg.Material.Name,
		StepsTaken: result.StepsTaken,
		Steps:      result.Steps,
		Metrics:    result.Metrics,
	}
}

// Save writes a run directory holding the metadata, the configuration that
// produced it and the displacement history.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", cfg.Scene, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newMetadata(runID, cfg, result)); err != nil {
		return "", err
	}

	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := ExportCSV(csvFile, result); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadConfig reads back the configuration a run was produced with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	path := filepath.Join(s.baseDir, runID, configFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return config.Load(path)
}

func (s *Store) LoadStates(runID string) ([]sim.State, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return []sim.State{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([]sim.State, 0, len(records)-1)

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %s time %q: %w", runID, record[0], err)
		}

		state := make(sim.State, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s value %q: %w", runID, field, err)
			}
			state = append(state, val)
		}
		times = append(times, t)
		states = append(states, state)
	}

	return states, times, nil
}
