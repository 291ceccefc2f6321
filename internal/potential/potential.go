// Package potential provides pair potentials and the lookup tables the
// engine uses to find them.
//
// All potentials are evaluated at a squared separation r2. Derivatives are
// returned in the scaled form du = r dU/dr and d2u = r^2 d^2U/dr^2, which
// is what the virial and the Hessian-based consumers need directly.
package potential

import (
	"errors"
	"math"
)

// ErrTypeIndex indicates an atom type outside the table.
var ErrTypeIndex = errors.New("potential: atom type out of range")

// Pair is an isotropic pair interaction.
type Pair interface {
	// U returns the energy at squared separation r2.
	U(r2 float64) float64
	// U012 returns the energy and its scaled first and second derivatives.
	U012(r2 float64) (u, du, d2u float64)
	// Cutoff returns the interaction range, or +Inf for unbounded potentials.
	Cutoff() float64
}

// Truncation selects how a potential is cut off.
type Truncation int

const (
	// TruncNone evaluates the full potential at any distance.
	TruncNone Truncation = iota
	// TruncSimple drops the potential beyond the cutoff.
	TruncSimple
	// TruncShift subtracts U(rc) so the energy is continuous.
	TruncShift
	// TruncForceShift also subtracts the linear term so the force is continuous.
	TruncForceShift
)

// ParseTruncation maps a config name to a Truncation.
func ParseTruncation(name string) (Truncation, error) {
	switch name {
	case "", "simple":
		return TruncSimple, nil
	case "none":
		return TruncNone, nil
	case "shift":
		return TruncShift, nil
	case "force-shift":
		return TruncForceShift, nil
	}
	return 0, errors.New("potential: unknown truncation " + name)
}

// LJ is the Lennard-Jones 12-6 potential.
type LJ struct {
	Epsilon, Sigma float64
	Truncation     Truncation

	rc, sigma2      float64
	uShift, duShift float64
}

// NewLJ returns a Lennard-Jones potential cut at rc. rc is ignored for
// TruncNone.
func NewLJ(epsilon, sigma float64, trunc Truncation, rc float64) *LJ {
	p := &LJ{Epsilon: epsilon, Sigma: sigma, Truncation: trunc, rc: rc, sigma2: sigma * sigma}
	if trunc == TruncNone {
		p.rc = math.Inf(1)
		return p
	}
	rc2 := rc * rc
	if trunc == TruncShift || trunc == TruncForceShift {
		p.uShift = p.raw(rc2)
	}
	if trunc == TruncForceShift {
		_, du, _ := p.raw012(rc2)
		// dU/dr at rc
		p.duShift = du / rc
	}
	return p
}

func (p *LJ) raw(r2 float64) float64 {
	s6 := p.sigma2 / r2
	s6 = s6 * s6 * s6
	return 4 * p.Epsilon * s6 * (s6 - 1)
}

func (p *LJ) raw012(r2 float64) (u, du, d2u float64) {
	s6 := p.sigma2 / r2
	s6 = s6 * s6 * s6
	s12 := s6 * s6
	u = 4 * p.Epsilon * (s12 - s6)
	du = -4 * p.Epsilon * (12*s12 - 6*s6)
	d2u = 4 * p.Epsilon * (156*s12 - 42*s6)
	return
}

func (p *LJ) U(r2 float64) float64 {
	u := p.raw(r2) - p.uShift
	if p.Truncation == TruncForceShift {
		u -= (math.Sqrt(r2) - p.rc) * p.duShift
	}
	return u
}

func (p *LJ) U012(r2 float64) (u, du, d2u float64) {
	u, du, d2u = p.raw012(r2)
	u -= p.uShift
	if p.Truncation == TruncForceShift {
		r := math.Sqrt(r2)
		u -= (r - p.rc) * p.duShift
		du -= r * p.duShift
	}
	return
}

func (p *LJ) Cutoff() float64 { return p.rc }

// SoftSphere is the inverse-power repulsion epsilon*(sigma/r)^n.
type SoftSphere struct {
	Epsilon, Sigma float64
	N              int
	rc             float64
}

// NewSoftSphere returns a soft-sphere potential with a simple cutoff at rc.
func NewSoftSphere(epsilon, sigma float64, n int, rc float64) *SoftSphere {
	return &SoftSphere{Epsilon: epsilon, Sigma: sigma, N: n, rc: rc}
}

func (p *SoftSphere) U(r2 float64) float64 {
	return p.Epsilon * math.Pow(p.Sigma*p.Sigma/r2, float64(p.N)/2)
}

func (p *SoftSphere) U012(r2 float64) (u, du, d2u float64) {
	u = p.U(r2)
	n := float64(p.N)
	return u, -n * u, n * (n + 1) * u
}

func (p *SoftSphere) Cutoff() float64 { return p.rc }

// HardSphere has infinite energy inside sigma and none outside.
type HardSphere struct {
	Sigma float64
}

func (p *HardSphere) U(r2 float64) float64 {
	if r2 < p.Sigma*p.Sigma {
		return math.Inf(1)
	}
	return 0
}

func (p *HardSphere) U012(r2 float64) (u, du, d2u float64) {
	return p.U(r2), 0, 0
}

func (p *HardSphere) Cutoff() float64 { return p.Sigma }

// Harmonic is a spring k/2 (r-r0)^2, used for bonds.
type Harmonic struct {
	K, R0 float64
}

func (p *Harmonic) U(r2 float64) float64 {
	d := math.Sqrt(r2) - p.R0
	return 0.5 * p.K * d * d
}

func (p *Harmonic) U012(r2 float64) (u, du, d2u float64) {
	r := math.Sqrt(r2)
	d := r - p.R0
	return 0.5 * p.K * d * d, r * p.K * d, r2 * p.K
}

func (p *Harmonic) Cutoff() float64 { return math.Inf(1) }
