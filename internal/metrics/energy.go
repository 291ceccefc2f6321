package metrics

import (
	"math"

	"github.com/san-kum/mdcore/internal/sim"
)

// MeanEnergy averages the total energy per atom.
type MeanEnergy struct {
	name     string
	numAtoms int
	sum      float64
	samples  int
	potOnly  bool
}

// NewMeanEnergy averages (U+K)/N.
func NewMeanEnergy(numAtoms int) *MeanEnergy {
	return &MeanEnergy{name: "energy_per_atom", numAtoms: numAtoms}
}

// NewMeanPotential averages U/N.
func NewMeanPotential(numAtoms int) *MeanEnergy {
	return &MeanEnergy{name: "potential_per_atom", numAtoms: numAtoms, potOnly: true}
}

func (e *MeanEnergy) Name() string { return e.name }

func (e *MeanEnergy) Observe(s sim.Sample) {
	if e.numAtoms == 0 {
		return
	}
	u := s.Total()
	if e.potOnly {
		u = s.Potential
	}
	e.sum += u / float64(e.numAtoms)
	e.samples++
}

func (e *MeanEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *MeanEnergy) Reset() {
	e.sum = 0
	e.samples = 0
}

// EnergyDrift tracks the largest relative deviation of the total energy
// from its first sample.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s sim.Sample) {
	energy := s.Total()
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MeanPressure averages the virial pressure. Samples with kinetic energy
// use the instantaneous kinetic temperature; others use the fixed one.
type MeanPressure struct {
	name        string
	numAtoms    int
	volume      float64
	temperature float64
	sum         float64
	samples     int
}

func NewMeanPressure(numAtoms int, volume, temperature float64) *MeanPressure {
	return &MeanPressure{name: "pressure", numAtoms: numAtoms, volume: volume, temperature: temperature}
}

func (p *MeanPressure) Name() string { return p.name }

func (p *MeanPressure) Observe(s sim.Sample) {
	ideal := float64(p.numAtoms) * p.temperature
	if s.Kinetic > 0 {
		ideal = 2 * s.Kinetic / 3
	}
	p.sum += (ideal - s.Virial/3) / p.volume
	p.samples++
}

func (p *MeanPressure) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.sum / float64(p.samples)
}

func (p *MeanPressure) Reset() {
	p.sum = 0
	p.samples = 0
}

// Acceptance reports the Monte Carlo acceptance rate of the latest sample.
type Acceptance struct {
	rate float64
}

func NewAcceptance() *Acceptance { return &Acceptance{} }

func (a *Acceptance) Name() string { return "acceptance" }

func (a *Acceptance) Observe(s sim.Sample) {
	if s.Trials > 0 {
		a.rate = float64(s.Accepted) / float64(s.Trials)
	}
}

func (a *Acceptance) Value() float64 { return a.rate }

func (a *Acceptance) Reset() { a.rate = 0 }
