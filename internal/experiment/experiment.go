package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/box"
	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/engine"
	"github.com/san-kum/mdcore/internal/integrators"
	"github.com/san-kum/mdcore/internal/rng"
	"github.com/san-kum/mdcore/internal/sim"
	"github.com/san-kum/mdcore/internal/species"
	"github.com/san-kum/mdcore/internal/telemetry"
)

type Experiment struct {
	cfg        *config.Config
	rng        *rng.Partitioned
	box        *box.Box
	engine     Engine
	pressure   *engine.Pressure
	integrator sim.Integrator
	simulator  *sim.Simulator
}

// NewBox builds the lattice configuration a config describes: a cubic box
// of monatomic species on an FCC lattice, displaced by up to cfg.Jitter.
func NewBox(cfg *config.Config, src *rng.Partitioned) (*box.Box, error) {
	sl, err := species.NewList(species.NewAtomic(1))
	if err != nil {
		return nil, err
	}
	b := box.New(sl)
	if err := b.SetNumMolecules(0, cfg.Atoms); err != nil {
		return nil, err
	}
	l := cfg.BoxEdge()
	if err := b.SetSize(l, l, l); err != nil {
		return nil, err
	}
	b.InitFCC()

	if cfg.Jitter > 0 {
		r := src.ForSubsystem(rng.SubsystemConfig)
		for i := 0; i < b.NumAtoms(); i++ {
			b.SetPosition(i, b.Fold(r3.Add(b.Position(i), r3.Scale(cfg.Jitter, rng.InSphere(r)))))
		}
	}
	return b, nil
}

// NewEngine builds the configured evaluator over b and initializes it.
func NewEngine(reg *Registry, name string, cfg *config.Config, b *box.Box, collector *telemetry.Collector) (Engine, error) {
	eng, err := reg.GetEvaluator(name, b, cfg)
	if err != nil {
		return nil, err
	}
	p, err := reg.GetPotential(cfg.Potential)
	if err != nil {
		return nil, err
	}
	eng.SetCollector(collector)
	if err := eng.SetPairPotential(0, 0, p); err != nil {
		return nil, err
	}
	if err := eng.Init(); err != nil {
		return nil, fmt.Errorf("experiment: %s evaluator: %w", name, err)
	}
	return eng, nil
}

// Build assembles a runnable experiment. collector may be nil.
func Build(cfg *config.Config, reg *Registry, collector *telemetry.Collector) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{cfg: cfg, rng: rng.New(cfg.Seed)}

	var err error
	if e.box, err = NewBox(cfg, e.rng); err != nil {
		return nil, err
	}
	if e.engine, err = NewEngine(reg, cfg.Evaluator, cfg, e.box, collector); err != nil {
		return nil, err
	}
	e.pressure = engine.NewPressure(e.box, cfg.Temperature)
	e.engine.AddCallback(e.pressure)

	switch cfg.Mode {
	case "md":
		v := integrators.NewVerlet(e.box, e.engine, cfg.Dt)
		v.RandomizeVelocities(cfg.Temperature, e.rng.ForSubsystem(rng.SubsystemVelocities))
		e.integrator = v
	case "mc":
		r := e.rng.ForSubsystem(rng.SubsystemMoves)
		mc := integrators.NewMC(e.engine, r, cfg.Temperature)
		mc.AddMove(integrators.NewDisplacement(e.box, e.engine, r, cfg.StepSize))
		mc.SetCheckEvery(cfg.CheckEvery)
		e.integrator = mc
	}

	e.simulator = sim.New(e.integrator)
	for _, m := range reg.DefaultMetrics(cfg, e.box.Volume()) {
		e.simulator.AddMetric(m)
	}

	logrus.Debugf("experiment: %d atoms in %.4g^3 box, %s evaluator, %s", cfg.Atoms, cfg.BoxEdge(), e.engine.Strategy(), cfg.Mode)
	return e, nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.simConfig())
}

func (e *Experiment) simConfig() sim.Config {
	return sim.Config{Steps: e.cfg.Steps, SampleEvery: e.cfg.SampleEvery, ValidateState: true}
}

// Factory returns an ensemble factory that rebuilds the experiment with a
// different master seed per replica.
func Factory(cfg *config.Config, reg *Registry) sim.Factory {
	return func(seed int64) (*sim.Simulator, error) {
		c := cfg.Clone()
		c.Seed = seed
		e, err := Build(c, reg, nil)
		if err != nil {
			return nil, err
		}
		return e.simulator, nil
	}
}

// SimConfig returns the run-loop settings of the experiment.
func (e *Experiment) SimConfig() sim.Config { return e.simConfig() }

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Box() *box.Box { return e.box }

func (e *Experiment) Engine() Engine { return e.engine }

func (e *Experiment) Integrator() sim.Integrator { return e.integrator }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

// Pressure returns the virial pressure of the last full computation at the
// configured temperature.
func (e *Experiment) Pressure() float64 { return e.pressure.Data()[0] }
