package sim

import (
	"context"
	"fmt"
	"math"
)

type Simulator struct {
	integrator Integrator
	metrics    []Metric
	observers  []Observer
}

func New(integrator Integrator) *Simulator {
	return &Simulator{
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Integrator returns the integrator the simulator drives.
func (s *Simulator) Integrator() Integrator { return s.integrator }

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	every := cfg.SampleEvery
	if every == 0 {
		every = 1
	}

	result := &Result{
		Samples: make([]Sample, 0, cfg.Steps/every+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	if err := s.integrator.Reset(); err != nil {
		return nil, fmt.Errorf("sim: reset: %w", err)
	}
	first := s.integrator.Sample()
	s.observe(first)
	result.Samples = append(result.Samples, first)
	last := first

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.integrator.DoStep(); err != nil {
			result.Errors = append(result.Errors, &SimError{Step: i, Message: "step failed", Wrapped: err})
			break
		}
		result.StepsTaken++

		smp := s.integrator.Sample()
		if cfg.ValidateState && !smp.IsValid() {
			result.Errors = append(result.Errors, &SimError{Step: i, Message: "invalid energies (NaN/Inf)"})
			break
		}
		s.observe(smp)
		last = smp
		if (i+1)%every == 0 {
			result.Samples = append(result.Samples, smp)
		}
	}

	if e0 := first.Total(); e0 != 0 {
		result.EnergyDrift = math.Abs(last.Total()-e0) / math.Abs(e0)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) observe(smp Sample) {
	for _, m := range s.metrics {
		m.Observe(smp)
	}
	for _, obs := range s.observers {
		obs.OnStep(smp)
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if cfg.SampleEvery < 0 {
		return fmt.Errorf("sample interval must not be negative, got %d", cfg.SampleEvery)
	}
	return nil
}

// RunWithCallback steps until cfg.Steps or until callback returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(Sample) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	if err := s.integrator.Reset(); err != nil {
		return fmt.Errorf("sim: reset: %w", err)
	}

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !callback(s.integrator.Sample()) {
			return nil
		}

		if err := s.integrator.DoStep(); err != nil {
			return &SimError{Step: i, Message: "step failed", Wrapped: err}
		}

		if cfg.ValidateState && !s.integrator.Sample().IsValid() {
			return fmt.Errorf("invalid energies at step %d", i)
		}
	}

	return nil
}
