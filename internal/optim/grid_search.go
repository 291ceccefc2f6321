// Package optim searches configuration parameters for the best value of a
// run objective, e.g. the MC step size that gives a target acceptance.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/experiment"
	"github.com/san-kum/mdcore/internal/sim"
)

// Objective scores a finished run; lower is better.
type Objective func(*sim.Result) float64

// MetricObjective scores a run by one of its metrics.
func MetricObjective(name string) Objective {
	return func(r *sim.Result) float64 { return r.Metrics[name] }
}

// TargetObjective scores a run by the distance of a metric from target.
func TargetObjective(name string, target float64) Objective {
	return func(r *sim.Result) float64 { return math.Abs(r.Metrics[name] - target) }
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs every combination on top of base and returns the best
// parameters and score. Combinations that fail to build or run are skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	base *config.Config,
	registry *experiment.Registry,
	objective Objective,
) (map[string]float64, float64, error) {

	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, registry, objective, &best, &bestParams)
	return bestParams, best, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	registry *experiment.Registry,
	objective Objective,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		cfg := base.Clone()
		for _, k := range sortedNames(current) {
			if err := cfg.SetParam(k, current[k]); err != nil {
				return err
			}
		}

		exp, err := experiment.Build(cfg, registry, nil)
		if err != nil {
			return nil
		}

		result, err := exp.Run(ctx)
		if err != nil || len(result.Errors) > 0 {
			return nil
		}

		val := objective(result)
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, registry, objective, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
