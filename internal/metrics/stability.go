package metrics

import (
	"math"

	"github.com/san-kum/mdcore/internal/sim"
)

// Stability is the fraction of samples that are finite and whose
// potential energy per atom stays below threshold in magnitude.
type Stability struct {
	name       string
	numAtoms   int
	threshold  float64
	violations int
	samples    int
}

func NewStability(numAtoms int, threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		numAtoms:  numAtoms,
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(smp sim.Sample) {
	s.samples++
	if !smp.IsValid() {
		s.violations++
		return
	}
	if s.numAtoms > 0 && math.Abs(smp.Potential)/float64(s.numAtoms) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
