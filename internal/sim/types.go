package sim

import (
	"fmt"
	"math"
)

// Sample is the observable state of a run after one step.
type Sample struct {
	Step      int     `json:"step"`
	Potential float64 `json:"potential"`
	Kinetic   float64 `json:"kinetic"`
	Virial    float64 `json:"virial"`
	Trials    int     `json:"trials,omitempty"`
	Accepted  int     `json:"accepted,omitempty"`
}

// Total returns potential plus kinetic energy.
func (s Sample) Total() float64 { return s.Potential + s.Kinetic }

// IsValid reports whether every energy in the sample is finite.
func (s Sample) IsValid() bool {
	for _, v := range [3]float64{s.Potential, s.Kinetic, s.Virial} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Integrator advances a configuration by one step.
type Integrator interface {
	// Reset computes the starting energies; it must run before DoStep.
	Reset() error
	DoStep() error
	Sample() Sample
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

type Config struct {
	Steps int
	// SampleEvery keeps every n-th sample in the result; 0 keeps all.
	SampleEvery   int
	ValidateState bool
}

type Result struct {
	Samples     []Sample
	Metrics     map[string]float64
	StepsTaken  int
	EnergyDrift float64
	Errors      []error
}

// SimError ties a failure to the step it happened on.
type SimError struct {
	Step    int
	Message string
	Wrapped error
}

func (e *SimError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("step %d: %s: %v", e.Step, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("step %d: %s", e.Step, e.Message)
}

func (e *SimError) Unwrap() error { return e.Wrapped }
