// Package telemetry exposes engine counters as Prometheus metrics.
//
// A nil *Collector is valid and records nothing, so the engine can call it
// unconditionally.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the engine metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Computations     *prometheus.CounterVec
	PairsEvaluated   *prometheus.CounterVec
	NeighborRebuilds prometheus.Counter
	CapacityGrowths  prometheus.Counter
	CellMoves        prometheus.Counter
	NeighborCapacity prometheus.Gauge
	TrialFallbacks   prometheus.Counter
}

// NewCollector registers the engine metrics against reg, defaulting to the
// global registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	computations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_compute_all_total",
		Help: "Full energy/force computations, labeled by evaluation strategy.",
	}, []string{"strategy"}), "engine_compute_all_total")
	if err != nil {
		return nil, err
	}
	pairs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_pairs_evaluated_total",
		Help: "Pairs found inside the interaction cutoff, labeled by evaluation strategy.",
	}, []string{"strategy"}), "engine_pairs_evaluated_total")
	if err != nil {
		return nil, err
	}
	rebuilds, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_neighbor_rebuilds_total",
		Help: "Neighbor-list rebuilds.",
	}), "engine_neighbor_rebuilds_total")
	if err != nil {
		return nil, err
	}
	growths, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_neighbor_capacity_growths_total",
		Help: "Reallocations of the per-atom neighbor capacity.",
	}), "engine_neighbor_capacity_growths_total")
	if err != nil {
		return nil, err
	}
	moves, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_cell_moves_total",
		Help: "Atoms relinked into a different cell by UpdateAtom.",
	}), "engine_cell_moves_total")
	if err != nil {
		return nil, err
	}
	capacity, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_neighbor_capacity",
		Help: "Current per-atom neighbor-list capacity.",
	}), "engine_neighbor_capacity")
	if err != nil {
		return nil, err
	}
	fallbacks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_trial_fallbacks_total",
		Help: "Single-atom trials that left the neighbor-list safety margin and used a full scan.",
	}), "engine_trial_fallbacks_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		Computations:     computations,
		PairsEvaluated:   pairs,
		NeighborRebuilds: rebuilds,
		CapacityGrowths:  growths,
		CellMoves:        moves,
		NeighborCapacity: capacity,
		TrialFallbacks:   fallbacks,
	}, nil
}

// Gatherer returns the gatherer the collector was registered with.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// ObserveCompute records one full computation that evaluated pairs pairs.
func (c *Collector) ObserveCompute(strategy string, pairs int) {
	if c == nil {
		return
	}
	c.Computations.WithLabelValues(strategy).Inc()
	c.PairsEvaluated.WithLabelValues(strategy).Add(float64(pairs))
}

// ObserveRebuild records a neighbor-list rebuild with the resulting capacity.
func (c *Collector) ObserveRebuild(capacity int) {
	if c == nil {
		return
	}
	c.NeighborRebuilds.Inc()
	c.NeighborCapacity.Set(float64(capacity))
}

// ObserveGrowth records a neighbor capacity reallocation.
func (c *Collector) ObserveGrowth(capacity int) {
	if c == nil {
		return
	}
	c.CapacityGrowths.Inc()
	c.NeighborCapacity.Set(float64(capacity))
}

// ObserveCellMove records an atom changing cells.
func (c *Collector) ObserveCellMove() {
	if c == nil {
		return
	}
	c.CellMoves.Inc()
}

// ObserveTrialFallback records a trial evaluated by full scan.
func (c *Collector) ObserveTrialFallback() {
	if c == nil {
		return
	}
	c.TrialFallbacks.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
