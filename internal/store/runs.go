package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/mdcore/internal/sim"
)

var sampleHeader = []string{"step", "potential", "kinetic", "virial", "trials", "accepted"}

// Store keeps one directory per run holding metadata.json and samples.csv.
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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Mode      string             `json:"mode"`
	Evaluator string             `json:"evaluator"`
	Seed      int64              `json:"seed"`
	Steps     int                `json:"steps"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes a run under a fresh ID prefixed with name and returns the ID.
func (s *Store) Save(name string, data ExportData) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: now,
		Mode:      data.Mode,
		Evaluator: data.Evaluator,
		Seed:      data.Seed,
		Steps:     data.Steps,
		Metrics:   data.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "samples.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(sampleHeader); err != nil {
		return "", err
	}
	for _, smp := range data.Samples {
		row := []string{
			strconv.Itoa(smp.Step),
			strconv.FormatFloat(smp.Potential, 'g', -1, 64),
			strconv.FormatFloat(smp.Kinetic, 'g', -1, 64),
			strconv.FormatFloat(smp.Virial, 'g', -1, 64),
			strconv.Itoa(smp.Trials),
			strconv.Itoa(smp.Accepted),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return runID, w.Error()
}

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

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadSamples reads back the energy trace of a run.
func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(sampleHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	samples := make([]sim.Sample, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue
		}
		smp, err := parseSample(record)
		if err != nil {
			return nil, fmt.Errorf("store: %s line %d: %w", runID, i+1, err)
		}
		samples = append(samples, smp)
	}
	return samples, nil
}

func parseSample(record []string) (sim.Sample, error) {
	var smp sim.Sample
	var err error
	if smp.Step, err = strconv.Atoi(record[0]); err != nil {
		return smp, err
	}
	floats := []*float64{&smp.Potential, &smp.Kinetic, &smp.Virial}
	for k, dst := range floats {
		if *dst, err = strconv.ParseFloat(record[1+k], 64); err != nil {
			return smp, err
		}
	}
	if smp.Trials, err = strconv.Atoi(record[4]); err != nil {
		return smp, err
	}
	smp.Accepted, err = strconv.Atoi(record[5])
	return smp, err
}
