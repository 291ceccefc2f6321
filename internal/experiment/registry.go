package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/mdcore/internal/box"
	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/engine"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/sim"
	"github.com/san-kum/mdcore/internal/telemetry"
)

// Engine is an evaluator the experiment can configure.
type Engine interface {
	engine.Evaluator
	SetPairPotential(iType, jType int, p potential.Pair) error
	SetCollector(c *telemetry.Collector)
	AddCallback(cb engine.Callback)
	Strategy() string
}

type Registry struct {
	evaluators map[string]func(b *box.Box, cfg *config.Config) Engine
	potentials map[string]func(p config.PotentialConfig) (potential.Pair, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		evaluators: make(map[string]func(*box.Box, *config.Config) Engine),
		potentials: make(map[string]func(config.PotentialConfig) (potential.Pair, error)),
	}

	r.evaluators["brute"] = func(b *box.Box, _ *config.Config) Engine {
		return engine.New(b.Species(), b)
	}
	r.evaluators["cell"] = func(b *box.Box, cfg *config.Config) Engine {
		return engine.NewCell(b.Species(), b, cfg.CellRange)
	}
	r.evaluators["list"] = func(b *box.Box, cfg *config.Config) Engine {
		lm := engine.NewList(b.Species(), b, cfg.CellRange, cfg.NbrRange)
		lm.SetDoDownNbrs(cfg.DoDownNbrs)
		return lm
	}

	r.potentials["lj"] = func(p config.PotentialConfig) (potential.Pair, error) {
		trunc, err := potential.ParseTruncation(p.Truncation)
		if err != nil {
			return nil, err
		}
		return potential.NewLJ(p.Epsilon, p.Sigma, trunc, p.Cutoff), nil
	}
	r.potentials["soft-sphere"] = func(p config.PotentialConfig) (potential.Pair, error) {
		return potential.NewSoftSphere(p.Epsilon, p.Sigma, p.Exponent, p.Cutoff), nil
	}
	r.potentials["hard-sphere"] = func(p config.PotentialConfig) (potential.Pair, error) {
		return &potential.HardSphere{Sigma: p.Sigma}, nil
	}

	return r
}

// GetEvaluator builds the named evaluator over b. Potentials are not set.
func (r *Registry) GetEvaluator(name string, b *box.Box, cfg *config.Config) (Engine, error) {
	fn, ok := r.evaluators[name]
	if !ok {
		return nil, fmt.Errorf("unknown evaluator: %s", name)
	}
	return fn(b, cfg), nil
}

func (r *Registry) GetPotential(p config.PotentialConfig) (potential.Pair, error) {
	fn, ok := r.potentials[p.Type]
	if !ok {
		return nil, fmt.Errorf("unknown potential: %s", p.Type)
	}
	return fn(p)
}

func (r *Registry) ListEvaluators() []string { return sortedKeys(r.evaluators) }

func (r *Registry) ListPotentials() []string { return sortedKeys(r.potentials) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the metrics worth reporting for a run mode.
func (r *Registry) DefaultMetrics(cfg *config.Config, volume float64) []sim.Metric {
	ms := []sim.Metric{
		metrics.NewMeanPotential(cfg.Atoms),
		metrics.NewMeanPressure(cfg.Atoms, volume, cfg.Temperature),
		metrics.NewStability(cfg.Atoms, 1e3),
	}
	switch cfg.Mode {
	case "md":
		ms = append(ms, metrics.NewMeanEnergy(cfg.Atoms), metrics.NewEnergyDrift())
	case "mc":
		ms = append(ms, metrics.NewAcceptance())
	}
	return ms
}
