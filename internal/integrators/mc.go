package integrators

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/engine"
	"github.com/san-kum/mdcore/internal/rng"
	"github.com/san-kum/mdcore/internal/sim"
)

// Energy is the part of an evaluator Monte Carlo moves need.
type Energy interface {
	ComputeAll(callbacks ...engine.Callback) (uTot, virialTot float64)
	ComputeOne(iAtom int, ri r3.Vec, isTrial bool) float64
	UpdateAtom(iAtom int)
	ResetAtomDU()
	ProcessAtomU(coeff int)
	UTotalFromAtoms() float64
}

// Move is one kind of Monte Carlo trial.
type Move interface {
	// DoTrial perturbs the box. It returns false when no trial could be
	// made, which counts as a rejection.
	DoTrial() bool
	// Chi returns the acceptance probability of the pending trial.
	Chi(temperature float64) float64
	Accept()
	Reject()
	// EnergyChange returns the potential energy change of the pending trial.
	EnergyChange() float64
}

// Displacement moves one random atom uniformly inside a sphere.
type Displacement struct {
	box      Atoms
	energy   Energy
	r        *rand.Rand
	stepSize float64

	iAtom      int
	old        r3.Vec
	uOld, uNew float64

	trials, accepted int
}

// NewDisplacement returns a displacement move with the given maximum step.
func NewDisplacement(b Atoms, e Energy, r *rand.Rand, stepSize float64) *Displacement {
	return &Displacement{box: b, energy: e, r: r, stepSize: stepSize}
}

// StepSize returns the maximum displacement.
func (d *Displacement) StepSize() float64 { return d.stepSize }

// DoTrial implements Move.
func (d *Displacement) DoTrial() bool {
	n := d.box.NumAtoms()
	if n == 0 {
		return false
	}
	d.trials++
	d.iAtom = d.r.Intn(n)
	d.old = d.box.Position(d.iAtom)

	d.energy.ResetAtomDU()
	d.uOld = d.energy.ComputeOne(d.iAtom, d.old, false)

	ri := r3.Add(d.old, r3.Scale(d.stepSize, rng.InSphere(d.r)))
	d.box.SetPosition(d.iAtom, ri)
	d.energy.UpdateAtom(d.iAtom)
	d.uNew = d.energy.ComputeOne(d.iAtom, d.box.Position(d.iAtom), true)
	return true
}

// Chi implements Move.
func (d *Displacement) Chi(temperature float64) float64 {
	du := d.uNew - d.uOld
	if du <= 0 {
		return 1
	}
	if math.IsInf(du, 1) {
		return 0
	}
	return math.Exp(-du / temperature)
}

// EnergyChange implements Move.
func (d *Displacement) EnergyChange() float64 { return d.uNew - d.uOld }

// Accept implements Move.
func (d *Displacement) Accept() {
	d.accepted++
	d.energy.ProcessAtomU(1)
}

// Reject implements Move.
func (d *Displacement) Reject() {
	d.box.SetPosition(d.iAtom, d.old)
	d.energy.UpdateAtom(d.iAtom)
	d.energy.ResetAtomDU()
}

// AcceptanceRate returns the fraction of accepted trials since the last
// AdjustStep.
func (d *Displacement) AcceptanceRate() float64 {
	if d.trials == 0 {
		return 0
	}
	return float64(d.accepted) / float64(d.trials)
}

// AdjustStep nudges the step size toward the target acceptance rate and
// starts a new tuning window. The step never exceeds maxStep.
func (d *Displacement) AdjustStep(target, maxStep float64) {
	if d.trials == 0 {
		return
	}
	if d.AcceptanceRate() > target {
		d.stepSize *= 1.05
	} else {
		d.stepSize *= 0.95
	}
	if d.stepSize > maxStep {
		d.stepSize = maxStep
	}
	d.trials, d.accepted = 0, 0
}

// MC runs Metropolis Monte Carlo at fixed temperature. Each step performs
// one trial of a randomly chosen move.
type MC struct {
	energy      Energy
	r           *rand.Rand
	temperature float64
	moves       []Move

	uTot   float64
	virial float64

	step             int
	trials, accepted int

	checkEvery int
	tolerance  float64
}

// NewMC returns a Monte Carlo integrator.
func NewMC(e Energy, r *rand.Rand, temperature float64) *MC {
	return &MC{energy: e, r: r, temperature: temperature, tolerance: 1e-6}
}

// AddMove registers a move.
func (mc *MC) AddMove(m Move) { mc.moves = append(mc.moves, m) }

// SetCheckEvery makes every n-th step recompute the energy from scratch,
// compare it with the running total and resync. Zero disables the check.
func (mc *MC) SetCheckEvery(n int) { mc.checkEvery = n }

// Temperature returns the Metropolis temperature.
func (mc *MC) Temperature() float64 { return mc.temperature }

// Energy returns the running potential energy.
func (mc *MC) Energy() float64 { return mc.uTot }

// Reset computes the starting energy.
func (mc *MC) Reset() error {
	if len(mc.moves) == 0 {
		return ErrNoMoves
	}
	mc.step, mc.trials, mc.accepted = 0, 0, 0
	mc.uTot, mc.virial = mc.energy.ComputeAll()
	return nil
}

// DoStep performs one trial. Every move reports through UpdateAtom, so
// neighbor lists that track those reports are only checked once stale.
func (mc *MC) DoStep() error {
	switch nu := mc.energy.(type) {
	case engine.TrackingNeighborUpdater:
		if !nu.Valid() {
			nu.CheckUpdateNbrs()
		}
	case engine.NeighborUpdater:
		nu.CheckUpdateNbrs()
	}

	move := mc.moves[0]
	if len(mc.moves) > 1 {
		move = mc.moves[mc.r.Intn(len(mc.moves))]
	}
	mc.step++
	mc.trials++
	if move.DoTrial() {
		chi := move.Chi(mc.temperature)
		if chi >= 1 || mc.r.Float64() < chi {
			mc.uTot += move.EnergyChange()
			move.Accept()
			mc.accepted++
		} else {
			move.Reject()
		}
	}

	if mc.checkEvery > 0 && mc.step%mc.checkEvery == 0 {
		return mc.check()
	}
	return nil
}

func (mc *MC) check() error {
	u, virial := mc.energy.ComputeAll()
	if math.IsNaN(u) || math.IsInf(u, 0) {
		return ErrUnstable
	}
	if math.Abs(u-mc.uTot) > mc.tolerance*math.Max(1, math.Abs(u)) {
		logrus.Warnf("integrators: running energy %g drifted from %g at step %d, resyncing", mc.uTot, u, mc.step)
	}
	if cached := mc.energy.UTotalFromAtoms(); math.Abs(cached-u) > mc.tolerance*math.Max(1, math.Abs(u)) {
		logrus.Warnf("integrators: per-atom energies sum to %g, full computation gives %g", cached, u)
	}
	mc.uTot, mc.virial = u, virial
	return nil
}

// AcceptanceRate returns the fraction of accepted trials.
func (mc *MC) AcceptanceRate() float64 {
	if mc.trials == 0 {
		return 0
	}
	return float64(mc.accepted) / float64(mc.trials)
}

// Sample implements sim.Integrator. Virial is the value of the last full
// computation.
func (mc *MC) Sample() sim.Sample {
	return sim.Sample{
		Step:      mc.step,
		Potential: mc.uTot,
		Virial:    mc.virial,
		Trials:    mc.trials,
		Accepted:  mc.accepted,
	}
}
