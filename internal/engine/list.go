package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultNeighborCapacity is the initial per-atom neighbor capacity. It
// grows on demand and never shrinks.
const DefaultNeighborCapacity = 32

// ListMaster evaluates interactions over Verlet neighbor lists built from
// a cell grid at the neighbor range (interaction range plus skin).
//
// The lists are Valid from a rebuild until some atom may have moved half
// the skin, when they go Stale; ComputeAll rebuilds Stale lists before
// summing. Displacements reported through UpdateAtom are tracked per atom,
// so a move that is undone stops counting. Positions are wrapped only at
// rebuild, so stored box offsets stay correct while atoms drift.
type ListMaster struct {
	*Master
	grid     *cellGrid
	nbrRange float64
	doDown   bool

	up, down nbrRows
	maxNab   int

	oldPos      []r3.Vec
	disp2       []float64
	maxR2       float64
	maxR2Unsafe float64
	maxAtom     int

	initialized bool
	valid       bool
	rebuilds    int
	scans       int
}

// NewList returns a neighbor-list evaluator. nbrRange must exceed the
// largest pair cutoff; the difference is the skin.
func NewList(sp SpeciesSet, b Box, cellRange int, nbrRange float64) *ListMaster {
	lm := &ListMaster{
		Master:   newMaster(sp, b),
		grid:     newCellGrid(b, cellRange),
		nbrRange: nbrRange,
		maxNab:   DefaultNeighborCapacity,
		maxAtom:  -1,
	}
	lm.src = &listSource{lm: lm}
	b.OnResize(func() {
		if !lm.initialized {
			return
		}
		if err := lm.rebuild(); err != nil {
			lm.valid = false
			logrus.Errorf("engine: neighbor lists after resize: %v", err)
		}
	})
	return lm
}

// NeighborRange returns the range the lists are built at.
func (lm *ListMaster) NeighborRange() float64 { return lm.nbrRange }

// Skin returns the neighbor range beyond the interaction range.
func (lm *ListMaster) Skin() float64 { return lm.nbrRange - lm.Range() }

// SetNeighborCapacity sets the per-atom capacity used by the next
// rebuild. Capacity still grows past it when needed.
func (lm *ListMaster) SetNeighborCapacity(n int) {
	if n < 1 {
		n = 1
	}
	lm.maxNab = n
	lm.invalidate()
}

// NeighborCapacity returns the current per-atom capacity.
func (lm *ListMaster) NeighborCapacity() int { return lm.maxNab }

// SetDoDownNbrs enables lists of lower-indexed neighbors, which let
// single-atom computations skip the cell search.
func (lm *ListMaster) SetDoDownNbrs(on bool) {
	if on == lm.doDown {
		return
	}
	lm.doDown = on
	lm.invalidate()
}

func (lm *ListMaster) invalidate() {
	lm.valid = false
	if lm.initialized {
		lm.mustRebuild()
	}
}

// Valid reports whether the lists are current: built for the present
// atoms and potentials, with no tracked displacement past half the skin.
func (lm *ListMaster) Valid() bool { return lm.valid && !lm.exceeded() }

// Rebuilds returns the number of list rebuilds so far.
func (lm *ListMaster) Rebuilds() int { return lm.rebuilds }

// Scans returns how many times CheckUpdateNbrs recomputed every atom's
// displacement.
func (lm *ListMaster) Scans() int { return lm.scans }

// UpNbrs returns the higher-indexed neighbors of atom i.
func (lm *ListMaster) UpNbrs(i int) []int {
	idx, _ := lm.up.row(i)
	return idx
}

// DownNbrs returns the lower-indexed neighbors of atom i, or nil when down
// lists are off.
func (lm *ListMaster) DownNbrs(i int) []int {
	if !lm.doDown {
		return nil
	}
	idx, _ := lm.down.row(i)
	return idx
}

// Reset forces a rebuild.
func (lm *ListMaster) Reset() error {
	lm.valid = false
	return lm.rebuild()
}

// CheckUpdateNbrs recomputes every atom's displacement since the last
// rebuild and rebuilds when the largest could close the skin.
func (lm *ListMaster) CheckUpdateNbrs() {
	if !lm.valid {
		lm.mustRebuild()
		return
	}
	lm.scans++
	pos := lm.box.Positions()
	for i := range pos {
		lm.disp2[i] = r3.Norm2(lm.box.NearestImage(r3.Sub(pos[i], lm.oldPos[i])))
	}
	lm.refreshMax()
	if lm.exceeded() {
		lm.mustRebuild()
	}
}

// setDisp records atom i's squared displacement. Only a shrinking entry
// that held one of the two largest forces a recount.
func (lm *ListMaster) setDisp(i int, r2 float64) {
	old := lm.disp2[i]
	lm.disp2[i] = r2
	switch {
	case r2 >= old:
		lm.track(i, r2)
	case i == lm.maxAtom || old >= lm.maxR2Unsafe:
		lm.refreshMax()
	}
}

func (lm *ListMaster) refreshMax() {
	lm.maxR2, lm.maxR2Unsafe, lm.maxAtom = 0, 0, -1
	for i, r2 := range lm.disp2 {
		lm.track(i, r2)
	}
}

// track folds one atom's squared displacement into the two largest seen.
func (lm *ListMaster) track(i int, r2 float64) {
	switch {
	case r2 > lm.maxR2:
		if lm.maxAtom != i {
			lm.maxR2Unsafe = lm.maxR2
		}
		lm.maxR2 = r2
		lm.maxAtom = i
	case i != lm.maxAtom && r2 > lm.maxR2Unsafe:
		lm.maxR2Unsafe = r2
	}
}

func (lm *ListMaster) exceeded() bool {
	return 2*math.Sqrt(lm.maxR2) > lm.Skin()
}

func (lm *ListMaster) mustRebuild() {
	if err := lm.rebuild(); err != nil {
		logrus.Panicf("engine: neighbor list rebuild: %v", err)
	}
}

func (lm *ListMaster) rebuild() error {
	rc := lm.Range()
	if err := checkRange(lm.box, rc); err != nil {
		return err
	}
	if lm.nbrRange <= rc {
		return fmt.Errorf("%w: %g <= %g", ErrNeighborRange, lm.nbrRange, rc)
	}
	lm.resize(lm.box.NumAtoms())
	lm.box.EnforcePBC()
	if err := lm.grid.build(lm.nbrRange); err != nil {
		return err
	}

	n := lm.box.NumAtoms()
	lm.up.reset(n, lm.maxNab)
	if lm.doDown {
		lm.down.reset(n, lm.maxNab)
	}
	types := lm.box.AtomTypes()
	nr2 := lm.nbrRange * lm.nbrRange
	lm.grid.eachPair(func(i, j int, dr, bo r3.Vec) {
		if pij, _ := lm.pairs.Get(types[i], types[j]); pij == nil {
			return
		}
		if r3.Norm2(dr) > nr2 {
			return
		}
		if !lm.pureAtoms && lm.checkSkip(i, j) {
			return
		}
		if i > j {
			i, j = j, i
			bo = r3.Scale(-1, bo)
		}
		lm.addNbr(i, j, bo)
	})

	pos := lm.box.Positions()
	lm.oldPos = append(lm.oldPos[:0], pos...)
	lm.disp2 = resizeFloats(lm.disp2, n)
	clear(lm.disp2)
	lm.maxR2, lm.maxR2Unsafe, lm.maxAtom = 0, 0, -1
	lm.valid = true
	lm.initialized = true
	lm.rebuilds++
	lm.collector.ObserveRebuild(lm.maxNab)
	logrus.Debugf("engine: rebuilt neighbor lists for %d atoms (capacity %d)", n, lm.maxNab)
	return nil
}

func (lm *ListMaster) addNbr(i, j int, bo r3.Vec) {
	if lm.up.full(i) || (lm.doDown && lm.down.full(j)) {
		lm.growCapacity()
	}
	lm.up.push(i, j, bo)
	if lm.doDown {
		lm.down.push(j, i, r3.Scale(-1, bo))
	}
}

func (lm *ListMaster) growCapacity() {
	lm.maxNab *= 2
	lm.up.grow(lm.maxNab)
	if lm.doDown {
		lm.down.grow(lm.maxNab)
	}
	lm.collector.ObserveGrowth(lm.maxNab)
	logrus.Debugf("engine: neighbor capacity grown to %d", lm.maxNab)
}

// checkNbrPair returns the separation of a listed pair and whether it is
// inside the squared cutoff rc2.
func checkNbrPair(ri, rj, bo r3.Vec, rc2 float64) (r3.Vec, bool) {
	dr := r3.Add(r3.Sub(rj, ri), bo)
	return dr, r3.Norm2(dr) < rc2
}

type listSource struct {
	lm *ListMaster
}

func (s *listSource) name() string { return "list" }

func (s *listSource) init() error { return s.lm.rebuild() }

func (s *listSource) eachPair(visit func(i, j int, dr r3.Vec)) {
	lm := s.lm
	if !lm.Valid() {
		lm.mustRebuild()
	}
	pos := lm.box.Positions()
	types := lm.box.AtomTypes()
	for i, ri := range pos {
		idx, offs := lm.up.row(i)
		for k, j := range idx {
			_, rc2 := lm.pairs.Get(types[i], types[j])
			if dr, ok := checkNbrPair(ri, pos[j], offs[k], rc2); ok {
				visit(i, j, dr)
			}
		}
	}
}

// eachPartner serves a single-atom computation from the lists when the
// bound on atom iAtom's displacement plus any other atom's keeps the pair
// inside the skin, and falls back to a full scan otherwise.
func (s *listSource) eachPartner(iAtom int, ri r3.Vec, visit func(j int, dr r3.Vec)) {
	lm := s.lm
	if !lm.valid || !lm.safe(iAtom, ri) {
		lm.collector.ObserveTrialFallback()
		bruteScan(lm.box, iAtom, ri, visit)
		return
	}
	if !lm.doDown {
		lm.grid.eachPartner(iAtom, ri, visit)
		return
	}
	pos := lm.box.Positions()
	for _, rows := range [2]*nbrRows{&lm.up, &lm.down} {
		idx, offs := rows.row(iAtom)
		for k, j := range idx {
			visit(j, r3.Add(r3.Sub(pos[j], ri), offs[k]))
		}
	}
}

func (lm *ListMaster) safe(iAtom int, ri r3.Vec) bool {
	di := math.Sqrt(r3.Norm2(lm.box.NearestImage(r3.Sub(ri, lm.oldPos[iAtom]))))
	other := lm.maxR2
	if iAtom == lm.maxAtom {
		other = lm.maxR2Unsafe
	}
	return di+math.Sqrt(other) <= lm.Skin()
}

func (s *listSource) updateAtom(iAtom int) {
	lm := s.lm
	if !lm.valid {
		return
	}
	lm.setDisp(iAtom, r3.Norm2(lm.box.NearestImage(r3.Sub(lm.box.Positions()[iAtom], lm.oldPos[iAtom]))))
}

func (s *listSource) invalidate() error {
	s.lm.valid = false
	if !s.lm.initialized {
		return nil
	}
	return s.lm.rebuild()
}

func (s *listSource) newAtom() {
	s.lm.valid = false
	if s.lm.initialized {
		s.lm.mustRebuild()
	}
}

func (s *listSource) removeAtom(int) {
	s.lm.valid = false
	if s.lm.initialized {
		s.lm.mustRebuild()
	}
}
