package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/telemetry"
)

// pairSource enumerates candidate pairs for a Master. Every source must
// visit each interacting pair exactly once per eachPair sweep, with dr
// pointing from the first atom to the second.
type pairSource interface {
	name() string
	init() error
	eachPair(visit func(i, j int, dr r3.Vec))
	eachPartner(iAtom int, ri r3.Vec, visit func(j int, dr r3.Vec))
	updateAtom(iAtom int)
	newAtom()
	removeAtom(iAtom int)
	// invalidate drops geometry built for the old potentials. An
	// initialized source rebuilds at once and reports what it hit.
	invalidate() error
}

// Master is the brute-force evaluator and the shared core of the cell and
// neighbor-list evaluators.
type Master struct {
	box     Box
	species SpeciesSet
	pairs   *potential.Table
	bonds   *potential.Bonds

	pureAtoms bool
	rigid     bool

	uAtom   []float64
	duAtom  []float64
	dirty   []int
	inDirty []bool
	forces  []r3.Vec

	callbacks []Callback
	src       pairSource
	collector *telemetry.Collector
}

// New returns a brute-force evaluator. Every pair is visited on every
// computation; it is the reference the other strategies are checked
// against.
func New(sp SpeciesSet, b Box) *Master {
	m := newMaster(sp, b)
	m.src = &bruteSource{m: m}
	return m
}

func newMaster(sp SpeciesSet, b Box) *Master {
	return &Master{
		box:       b,
		species:   sp,
		pairs:     potential.NewTable(sp.NumAtomTypes()),
		bonds:     potential.NewBonds(sp.Len()),
		pureAtoms: sp.IsPurelyAtomic(),
		rigid:     true,
	}
}

// Strategy names the pair enumeration in use: "brute", "cell" or "list".
func (m *Master) Strategy() string { return m.src.name() }

// Box returns the box the evaluator reads.
func (m *Master) Box() Box { return m.box }

// SetCollector attaches a telemetry collector. A nil collector disables
// telemetry.
func (m *Master) SetCollector(c *telemetry.Collector) { m.collector = c }

// SetPairPotential registers p for the unordered type pair. A nil p
// removes the interaction. After Init the cell grid or neighbor lists are
// rebuilt for the new range, and an error means the evaluator cannot serve
// it until the potentials or the box change.
func (m *Master) SetPairPotential(iType, jType int, p potential.Pair) error {
	if err := m.pairs.Set(iType, jType, p); err != nil {
		return err
	}
	return m.src.invalidate()
}

// SetBondPotential registers p for intramolecular pairs of a species.
// Once any bond is registered, molecules are no longer treated as rigid and
// intramolecular pairs that are not bonded interact through the pair table.
func (m *Master) SetBondPotential(iSpecies int, pairs [][2]int, p potential.Pair) error {
	if err := m.bonds.Add(iSpecies, pairs, p); err != nil {
		return err
	}
	m.rigid = false
	return m.src.invalidate()
}

// Range returns the largest pair cutoff.
func (m *Master) Range() float64 { return m.pairs.Range() }

// AddCallback registers a callback that takes part in every ComputeAll.
func (m *Master) AddCallback(cb Callback) { m.callbacks = append(m.callbacks, cb) }

// Init prepares the pair enumeration for the current box. The cell and
// list evaluators must be initialized after the potentials are set and
// again after the atom count changes outside NewAtom/RemoveAtom.
func (m *Master) Init() error {
	m.resize(m.box.NumAtoms())
	return m.src.init()
}

func (m *Master) resize(n int) {
	if len(m.uAtom) == n {
		return
	}
	m.ResetAtomDU()
	m.uAtom = resizeFloats(m.uAtom, n)
	m.duAtom = resizeFloats(m.duAtom, n)
	m.inDirty = make([]bool, n)
	if m.forces != nil {
		m.forces = make([]r3.Vec, n)
	}
}

func resizeFloats(s []float64, n int) []float64 {
	if n <= cap(s) {
		s = s[:n]
		return s
	}
	grown := make([]float64, n)
	copy(grown, s)
	return grown
}

type sweep struct {
	types     []int
	uTot      float64
	virialTot float64
	pairs     int
	doForces  bool
	pairHooks []func(i, j int, dr r3.Vec, u, du, d2u float64)
}

// ComputeAll sums the energy and virial of every interacting pair and
// bonded pair, refreshes the per-atom energy cache and, when any callback
// takes forces, the force array. Registered callbacks run before the
// per-call ones.
func (m *Master) ComputeAll(callbacks ...Callback) (uTot, virialTot float64) {
	n := m.box.NumAtoms()
	m.resize(n)
	m.ResetAtomDU()
	for i := range m.uAtom {
		m.uAtom[i] = 0
	}

	s := sweep{types: m.box.AtomTypes()}
	var finished []func(float64, float64, []r3.Vec)
	for _, list := range [2][]Callback{m.callbacks, callbacks} {
		for _, cb := range list {
			h := cb.Hooks()
			if h.Pair != nil {
				s.pairHooks = append(s.pairHooks, h.Pair)
			}
			if h.Finished != nil {
				finished = append(finished, h.Finished)
			}
			s.doForces = s.doForces || h.TakesForces
		}
	}
	if s.doForces {
		if len(m.forces) != n {
			m.forces = make([]r3.Vec, n)
		}
		for i := range m.forces {
			m.forces[i] = r3.Vec{}
		}
	}

	m.src.eachPair(func(i, j int, dr r3.Vec) { m.pairAll(&s, i, j, dr) })
	if !m.pureAtoms && !m.rigid {
		m.bondsAll(&s)
	}
	m.collector.ObserveCompute(m.src.name(), s.pairs)

	var forces []r3.Vec
	if s.doForces {
		forces = m.forces
	}
	for _, fn := range finished {
		fn(s.uTot, s.virialTot, forces)
	}
	return s.uTot, s.virialTot
}

func (m *Master) pairAll(s *sweep, i, j int, dr r3.Vec) {
	pij, rc2 := m.pairs.Get(s.types[i], s.types[j])
	if pij == nil {
		return
	}
	r2 := r3.Norm2(dr)
	if r2 >= rc2 {
		return
	}
	if !m.pureAtoms && m.checkSkip(i, j) {
		return
	}
	u, du, d2u := pij.U012(r2)
	m.accumulate(s, i, j, dr, r2, u, du)
	for _, fn := range s.pairHooks {
		fn(i, j, dr, u, du, d2u)
	}
}

func (m *Master) accumulate(s *sweep, i, j int, dr r3.Vec, r2, u, du float64) {
	m.uAtom[i] += 0.5 * u
	m.uAtom[j] += 0.5 * u
	s.uTot += u
	s.virialTot += du
	s.pairs++
	if s.doForces {
		// dr points from i to j; du < 0 is repulsive and pushes i away.
		fij := r3.Scale(du/r2, dr)
		m.forces[i] = r3.Add(m.forces[i], fij)
		m.forces[j] = r3.Sub(m.forces[j], fij)
	}
}

// checkSkip reports whether a pair is excluded from the pair table:
// intramolecular pairs of rigid molecules, and bonded pairs otherwise.
func (m *Master) checkSkip(i, j int) bool {
	iMolecule := m.box.Molecule(i)
	if m.box.Molecule(j) != iMolecule {
		return false
	}
	if m.rigid {
		return true
	}
	iSpecies, first, _ := m.box.MoleculeInfo(iMolecule)
	return m.bonds.IsBonded(iSpecies, i-first, j-first)
}

func (m *Master) bondsAll(s *sweep) {
	pos := m.box.Positions()
	for iMolecule := 0; iMolecule < m.box.NumMolecules(); iMolecule++ {
		iSpecies, first, _ := m.box.MoleculeInfo(iMolecule)
		for _, bond := range m.bonds.Of(iSpecies) {
			for _, pr := range bond.Pairs {
				i, j := first+pr[0], first+pr[1]
				dr := m.box.NearestImage(r3.Sub(pos[j], pos[i]))
				r2 := r3.Norm2(dr)
				u, du, _ := bond.Potential.U012(r2)
				m.accumulate(s, i, j, dr, r2, u, du)
			}
		}
	}
}

// ComputeOne returns the energy of atom iAtom placed at ri with every
// other atom, bonded partners included. Half of each pair energy is
// recorded against both atoms in the pending delta buffer: added when
// isTrial is set, subtracted otherwise.
func (m *Master) ComputeOne(iAtom int, ri r3.Vec, isTrial bool) float64 {
	m.resize(m.box.NumAtoms())
	return m.computeOneAtom(iAtom, ri, trialSign(isTrial), iAtom)
}

// ComputeOneMolecule returns the energy of a molecule with the rest of the
// system plus its own intramolecular energy, counting every pair once.
func (m *Master) ComputeOneMolecule(iMolecule int, isTrial bool) float64 {
	m.resize(m.box.NumAtoms())
	_, first, last := m.box.MoleculeInfo(iMolecule)
	pos := m.box.Positions()
	sign := trialSign(isTrial)
	u := 0.0
	for a := first; a <= last; a++ {
		u += m.computeOneAtom(a, pos[a], sign, first)
	}
	return u
}

func trialSign(isTrial bool) float64 {
	if isTrial {
		return 1
	}
	return -1
}

// computeOneAtom skips partners j with lo <= j < iAtom; those pairs were
// already counted from the other side of a molecule sweep.
func (m *Master) computeOneAtom(iAtom int, ri r3.Vec, sign float64, lo int) float64 {
	types := m.box.AtomTypes()
	iType := types[iAtom]
	m.markDirty(iAtom)
	u1 := 0.0
	m.src.eachPartner(iAtom, ri, func(j int, dr r3.Vec) {
		if j >= lo && j < iAtom {
			return
		}
		pij, rc2 := m.pairs.Get(iType, types[j])
		if pij == nil {
			return
		}
		r2 := r3.Norm2(dr)
		if r2 >= rc2 {
			return
		}
		if !m.pureAtoms && m.checkSkip(iAtom, j) {
			return
		}
		u := pij.U(r2)
		u1 += u
		m.addDU(iAtom, j, sign*0.5*u)
	})
	if !m.pureAtoms && !m.rigid {
		u1 += m.bondsOne(iAtom, ri, sign, lo)
	}
	return u1
}

func (m *Master) bondsOne(iAtom int, ri r3.Vec, sign float64, lo int) float64 {
	iSpecies, first, _ := m.box.MoleculeInfo(m.box.Molecule(iAtom))
	pos := m.box.Positions()
	u1 := 0.0
	for _, p := range m.bonds.Partners(iSpecies, iAtom-first) {
		j := first + p.Atom
		if j >= lo && j < iAtom {
			continue
		}
		dr := m.box.NearestImage(r3.Sub(pos[j], ri))
		u := p.Potential.U(r3.Norm2(dr))
		u1 += u
		m.addDU(iAtom, j, sign*0.5*u)
	}
	return u1
}

func (m *Master) markDirty(i int) {
	if !m.inDirty[i] {
		m.inDirty[i] = true
		m.dirty = append(m.dirty, i)
	}
}

func (m *Master) addDU(i, j int, du float64) {
	m.duAtom[i] += du
	m.markDirty(j)
	m.duAtom[j] += du
}

// OldEnergy returns the cached energy of atom iAtom: twice its share of
// every pair it took part in during the last committed computation.
func (m *Master) OldEnergy(iAtom int) float64 { return 2 * m.uAtom[iAtom] }

// ResetAtomDU discards the pending deltas.
func (m *Master) ResetAtomDU() {
	for _, i := range m.dirty {
		m.duAtom[i] = 0
		m.inDirty[i] = false
	}
	m.dirty = m.dirty[:0]
}

// ProcessAtomU commits the pending deltas, scaled by coeff, into the
// per-atom cache and clears them.
func (m *Master) ProcessAtomU(coeff int) {
	c := float64(coeff)
	for _, i := range m.dirty {
		m.uAtom[i] += c * m.duAtom[i]
	}
	m.ResetAtomDU()
}

// DirtyAtoms returns the atoms with a pending delta, in the order they were
// first touched. The slice is reused by the next trial.
func (m *Master) DirtyAtoms() []int { return m.dirty }

// AtomEnergies exposes the per-atom energy cache.
func (m *Master) AtomEnergies() []float64 { return m.uAtom }

// UTotalFromAtoms returns the total energy implied by the per-atom cache.
func (m *Master) UTotalFromAtoms() float64 { return floats.Sum(m.uAtom) }

// Forces returns the forces of the last ComputeAll that had a force-taking
// callback.
func (m *Master) Forces() []r3.Vec { return m.forces }

// UpdateAtom reports that atom iAtom moved.
func (m *Master) UpdateAtom(iAtom int) { m.src.updateAtom(iAtom) }

// NewAtom reports that the box appended an atom. Pending deltas are
// discarded.
func (m *Master) NewAtom() {
	m.ResetAtomDU()
	n := m.box.NumAtoms()
	m.resize(n)
	m.uAtom[n-1] = 0
	m.src.newAtom()
}

// RemoveAtom reports that the box removed atom iAtom and moved its last
// atom into that slot. Pending deltas are discarded.
func (m *Master) RemoveAtom(iAtom int) {
	m.ResetAtomDU()
	n := m.box.NumAtoms()
	if len(m.uAtom) == n+1 {
		m.uAtom[iAtom] = m.uAtom[n]
	}
	m.resize(n)
	m.src.removeAtom(iAtom)
}

type bruteSource struct {
	m *Master
}

func (s *bruteSource) name() string { return "brute" }

func (s *bruteSource) init() error { return nil }

func (s *bruteSource) eachPair(visit func(i, j int, dr r3.Vec)) {
	b := s.m.box
	pos := b.Positions()
	for i := range pos {
		ri := pos[i]
		for j := i + 1; j < len(pos); j++ {
			visit(i, j, b.NearestImage(r3.Sub(pos[j], ri)))
		}
	}
}

func (s *bruteSource) eachPartner(iAtom int, ri r3.Vec, visit func(j int, dr r3.Vec)) {
	bruteScan(s.m.box, iAtom, ri, visit)
}

func bruteScan(b Box, iAtom int, ri r3.Vec, visit func(j int, dr r3.Vec)) {
	for j, rj := range b.Positions() {
		if j == iAtom {
			continue
		}
		visit(j, b.NearestImage(r3.Sub(rj, ri)))
	}
}

func (s *bruteSource) updateAtom(int)    {}
func (s *bruteSource) newAtom()          {}
func (s *bruteSource) removeAtom(int)    {}
func (s *bruteSource) invalidate() error { return nil }

func isUnbounded(r float64) bool { return math.IsInf(r, 1) }
