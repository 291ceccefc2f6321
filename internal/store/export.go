package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/sim"
)

type ExportData struct {
	Mode        string             `json:"mode"`
	Evaluator   string             `json:"evaluator"`
	Potential   string             `json:"potential"`
	Atoms       int                `json:"atoms"`
	Density     float64            `json:"density"`
	Temperature float64            `json:"temperature"`
	Steps       int                `json:"steps"`
	Seed        int64              `json:"seed"`
	Pressure    float64            `json:"pressure"`
	EnergyDrift float64            `json:"energy_drift"`
	Samples     []sim.Sample       `json:"samples"`
	Metrics     map[string]float64 `json:"metrics"`
	Errors      []string           `json:"errors,omitempty"`
}

// NewExportData flattens a run and its config for export.
func NewExportData(cfg *config.Config, pressure float64, result *sim.Result) ExportData {
	data := ExportData{
		Mode:        cfg.Mode,
		Evaluator:   cfg.Evaluator,
		Potential:   cfg.Potential.Type,
		Atoms:       cfg.Atoms,
		Density:     cfg.Density,
		Temperature: cfg.Temperature,
		Steps:       result.StepsTaken,
		Seed:        cfg.Seed,
		Pressure:    pressure,
		EnergyDrift: result.EnergyDrift,
		Samples:     result.Samples,
		Metrics:     result.Metrics,
	}
	for _, err := range result.Errors {
		data.Errors = append(data.Errors, err.Error())
	}
	return data
}

// Export writes data as indented JSON.
func Export(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return Export(file, data)
}

func ExportJSONStdout(data ExportData) error {
	return Export(os.Stdout, data)
}
