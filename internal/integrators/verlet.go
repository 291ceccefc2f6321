// Package integrators advances a box in time or in Monte Carlo steps,
// driving an interaction evaluator for energies and forces.
package integrators

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/engine"
	"github.com/san-kum/mdcore/internal/rng"
	"github.com/san-kum/mdcore/internal/sim"
)

// ForceField is the part of an evaluator a dynamics integrator needs.
type ForceField interface {
	ComputeAll(callbacks ...engine.Callback) (uTot, virialTot float64)
	UpdateAtom(iAtom int)
	Forces() []r3.Vec
}

// Atoms is the part of a box a dynamics integrator moves.
type Atoms interface {
	NumAtoms() int
	Position(i int) r3.Vec
	SetPosition(i int, r r3.Vec)
	Mass(i int) float64
}

// Verlet integrates Newton's equations with the velocity Verlet scheme.
// Positions are left unwrapped; evaluators fold atoms as they need to.
type Verlet struct {
	box Atoms
	ff  ForceField
	dt  float64

	velocities []r3.Vec
	uTot       float64
	virial     float64
	step       int
}

// NewVerlet returns a velocity Verlet integrator with time step dt. All
// velocities start at zero.
func NewVerlet(b Atoms, ff ForceField, dt float64) *Verlet {
	return &Verlet{box: b, ff: ff, dt: dt, velocities: make([]r3.Vec, b.NumAtoms())}
}

// Hooks implements engine.Callback.
func (v *Verlet) Hooks() engine.Hooks {
	return engine.Hooks{Finished: v.finished, TakesForces: true}
}

func (v *Verlet) finished(uTot, virialTot float64, _ []r3.Vec) {
	v.uTot = uTot
	v.virial = virialTot
}

// TimeStep returns dt.
func (v *Verlet) TimeStep() float64 { return v.dt }

// Velocities exposes the velocity of every atom.
func (v *Verlet) Velocities() []r3.Vec { return v.velocities }

// RandomizeVelocities draws Maxwell-Boltzmann velocities at temperature t,
// removes the net momentum and rescales to exactly t.
func (v *Verlet) RandomizeVelocities(t float64, r *rand.Rand) {
	n := v.box.NumAtoms()
	v.velocities = make([]r3.Vec, n)
	if n == 0 {
		return
	}

	var p r3.Vec
	mTot := 0.0
	for i := range v.velocities {
		m := v.box.Mass(i)
		v.velocities[i] = r3.Scale(math.Sqrt(t/m), rng.Gaussian(r))
		p = r3.Add(p, r3.Scale(m, v.velocities[i]))
		mTot += m
	}
	drift := r3.Scale(1/mTot, p)
	for i := range v.velocities {
		v.velocities[i] = r3.Sub(v.velocities[i], drift)
	}

	if cur := v.Temperature(); cur > 0 {
		s := math.Sqrt(t / cur)
		for i := range v.velocities {
			v.velocities[i] = r3.Scale(s, v.velocities[i])
		}
	}
}

// Momentum returns the total momentum.
func (v *Verlet) Momentum() r3.Vec {
	var p r3.Vec
	for i, vel := range v.velocities {
		p = r3.Add(p, r3.Scale(v.box.Mass(i), vel))
	}
	return p
}

// KineticEnergy returns the total kinetic energy.
func (v *Verlet) KineticEnergy() float64 {
	ke := 0.0
	for i, vel := range v.velocities {
		ke += 0.5 * v.box.Mass(i) * r3.Norm2(vel)
	}
	return ke
}

// Temperature returns the kinetic temperature with the center-of-mass
// degrees of freedom removed.
func (v *Verlet) Temperature() float64 {
	n := len(v.velocities)
	dof := 3 * (n - 1)
	if n <= 1 {
		dof = 3 * n
	}
	if dof == 0 {
		return 0
	}
	return 2 * v.KineticEnergy() / float64(dof)
}

// Reset computes the starting forces and energy.
func (v *Verlet) Reset() error {
	n := v.box.NumAtoms()
	if n == 0 {
		return ErrTooFewAtoms
	}
	if len(v.velocities) != n {
		v.velocities = make([]r3.Vec, n)
	}
	v.step = 0
	v.ff.ComputeAll(v)
	return nil
}

// DoStep advances one time step.
func (v *Verlet) DoStep() error {
	halfDt := 0.5 * v.dt
	forces := v.ff.Forces()
	for i := range v.velocities {
		v.velocities[i] = r3.Add(v.velocities[i], r3.Scale(halfDt/v.box.Mass(i), forces[i]))
		v.box.SetPosition(i, r3.Add(v.box.Position(i), r3.Scale(v.dt, v.velocities[i])))
		v.ff.UpdateAtom(i)
	}
	if nu, ok := v.ff.(engine.NeighborUpdater); ok {
		nu.CheckUpdateNbrs()
	}

	v.ff.ComputeAll(v)
	forces = v.ff.Forces()
	for i := range v.velocities {
		v.velocities[i] = r3.Add(v.velocities[i], r3.Scale(halfDt/v.box.Mass(i), forces[i]))
	}
	v.step++

	if math.IsNaN(v.uTot) || math.IsInf(v.uTot, 0) {
		return fmt.Errorf("%w: U=%g at step %d", ErrUnstable, v.uTot, v.step)
	}
	return nil
}

// Sample implements sim.Integrator.
func (v *Verlet) Sample() sim.Sample {
	return sim.Sample{
		Step:      v.step,
		Potential: v.uTot,
		Kinetic:   v.KineticEnergy(),
		Virial:    v.virial,
	}
}
