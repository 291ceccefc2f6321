package experiment

import (
	"math"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/rng"
	"github.com/san-kum/mdcore/internal/telemetry"
)

// Evaluation is one evaluator's result on a shared configuration.
type Evaluation struct {
	Strategy string  `json:"strategy"`
	Energy   float64 `json:"energy"`
	Virial   float64 `json:"virial"`
}

// Compare evaluates the configured lattice with every registered evaluator.
// Missing cell or neighbor ranges are filled in so all evaluators can run.
func Compare(cfg *config.Config, reg *Registry, collector *telemetry.Collector) ([]Evaluation, error) {
	c := cfg.Clone()
	if c.CellRange < 1 {
		c.CellRange = 2
	}
	if c.NbrRange <= c.InteractionRange() {
		c.NbrRange = 1.1 * c.InteractionRange()
	}

	b, err := NewBox(c, rng.New(c.Seed))
	if err != nil {
		return nil, err
	}

	var out []Evaluation
	for _, name := range reg.ListEvaluators() {
		eng, err := NewEngine(reg, name, c, b, collector)
		if err != nil {
			return nil, err
		}
		u, w := eng.ComputeAll()
		out = append(out, Evaluation{Strategy: eng.Strategy(), Energy: u, Virial: w})
	}
	return out, nil
}

// MaxDeviation returns the largest relative difference of energy or virial
// from the first evaluation.
func MaxDeviation(evals []Evaluation) float64 {
	if len(evals) < 2 {
		return 0
	}
	ref := evals[0]
	dev := 0.0
	for _, ev := range evals[1:] {
		dev = math.Max(dev, relDiff(ev.Energy, ref.Energy))
		dev = math.Max(dev, relDiff(ev.Virial, ref.Virial))
	}
	return dev
}

func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(1, math.Abs(b))
}
