package config

import "sort"

var Presets = map[string]*Config{
	"lj-liquid": {
		Mode: "md", Evaluator: "list", Atoms: 500, Density: 0.8, Temperature: 1.2,
		Steps: 2000, SampleEvery: 20, Seed: 1, Dt: 0.002,
		Potential: PotentialConfig{Type: "lj", Epsilon: 1, Sigma: 1, Cutoff: 2.5, Truncation: "force-shift"},
		CellRange: 2, NbrRange: 2.8,
	},
	"lj-solid": {
		Mode: "md", Evaluator: "cell", Atoms: 864, Density: 1.1, Temperature: 0.1,
		Steps: 1000, SampleEvery: 10, Seed: 1, Dt: 0.002,
		Potential: PotentialConfig{Type: "lj", Epsilon: 1, Sigma: 1, Cutoff: 3.0, Truncation: "shift"},
		CellRange: 2,
	},
	"soft-sphere": {
		Mode: "md", Evaluator: "list", Atoms: 256, Density: 1.0, Temperature: 1.0,
		Steps: 1000, SampleEvery: 10, Seed: 1, Dt: 0.001,
		Potential: PotentialConfig{Type: "soft-sphere", Epsilon: 1, Sigma: 1, Cutoff: 2.2, Exponent: 12},
		CellRange: 2, NbrRange: 2.5,
	},
	"lj-mc": {
		Mode: "mc", Evaluator: "list", Atoms: 256, Density: 0.8, Temperature: 1.5,
		Steps: 50000, SampleEvery: 500, Seed: 1, StepSize: 0.15, Jitter: 0.05,
		Potential: PotentialConfig{Type: "lj", Epsilon: 1, Sigma: 1, Cutoff: 2.5, Truncation: "shift"},
		CellRange: 2, NbrRange: 2.9, DoDownNbrs: true, CheckEvery: 5000,
	},
	"hard-sphere-mc": {
		Mode: "mc", Evaluator: "cell", Atoms: 500, Density: 0.6, Temperature: 1.0,
		Steps: 20000, SampleEvery: 200, Seed: 1, StepSize: 0.1,
		Potential: PotentialConfig{Type: "hard-sphere", Sigma: 1},
		CellRange: 1,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
