package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/chargesim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a stored run. Charges and Masses are kept so a run
// can be analysed without the scenario file.
type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Particles   int                `json:"particles"`
	Dim         int                `json:"dim"`
	Coulomb     float64            `json:"coulomb"`
	Charges     []float64          `json:"charges"`
	Masses      []float64          `json:"masses"`
	Integrator  string             `json:"integrator"`
	Samples     int                `json:"samples"`
	Steps       int                `json:"steps"`
	Evaluations int                `json:"evaluations"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes the run under a fresh ID and returns it. ID, Timestamp,
// Samples, Steps, Evaluations, EnergyDrift and Metrics are filled from the
// result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Name, uuid.NewString()[:8])
	meta.Timestamp = time.Now().UTC()
	meta.Samples = len(result.States)
	meta.Steps = result.StepsTaken
	meta.Evaluations = result.Evaluations
	meta.EnergyDrift = result.EnergyDrift
	meta.Metrics = finiteMetrics(result.Metrics)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), result); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}

	return meta.ID, nil
}

// finiteMetrics drops values JSON cannot encode, e.g. the +Inf separation of
// a single particle.
func finiteMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStates(path string, result *sim.Result) error {
	if len(result.Times) < len(result.States) {
		return fmt.Errorf("storage: %d states but only %d times", len(result.States), len(result.Times))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(result.States) > 0 {
		header := []string{"time"}
		for i := range result.States[0] {
			header = append(header, fmt.Sprintf("x%d", i))
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	for i, state := range result.States {
		row := make([]string, 0, len(state)+1)
		row = append(row, strconv.FormatFloat(result.Times[i], 'g', -1, 64))
		for _, val := range state {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns every readable run, newest first. Directories without valid
// metadata are skipped.
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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
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

// LoadStates reads the sampled trajectory back. Values round-trip exactly.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: row %d: %w", i+1, err)
		}
		state := make([]float64, len(record)-1)
		for j, field := range record[1:] {
			if state[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, nil, fmt.Errorf("storage: row %d col %d: %w", i+1, j+1, err)
			}
		}
		times = append(times, t)
		states = append(states, state)
	}

	return states, times, nil
}

func (s *Store) Delete(runID string) error {
	runDir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(runDir, metadataFile)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return err
	}
	return os.RemoveAll(runDir)
}
