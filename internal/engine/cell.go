package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

// CellMaster evaluates interactions over a periodic cell grid. Atoms are
// kept inside the box: UpdateAtom wraps the moved atom before relinking it.
type CellMaster struct {
	*Master
	grid *cellGrid
}

// NewCell returns a cell-list evaluator whose cells are at least
// range/cellRange wide. Init must be called once the potentials are set.
func NewCell(sp SpeciesSet, b Box, cellRange int) *CellMaster {
	cm := &CellMaster{Master: newMaster(sp, b), grid: newCellGrid(b, cellRange)}
	cm.src = &cellSource{cm: cm}
	b.OnResize(func() {
		if !cm.grid.ready {
			return
		}
		if err := cm.Init(); err != nil {
			logrus.Errorf("engine: cell grid after resize: %v", err)
		}
	})
	return cm
}

// CellRange returns the number of cells spanning the interaction range.
func (cm *CellMaster) CellRange() int { return cm.grid.cellRange }

// NumCells returns the real cell count along each axis.
func (cm *CellMaster) NumCells() [3]int { return cm.grid.numCells }

// CellForCoord returns the index of the cell holding r.
func (cm *CellMaster) CellForCoord(r r3.Vec) int { return cm.grid.cellFor(r) }

// AtomCell returns the cell atom iAtom is linked into.
func (cm *CellMaster) AtomCell(iAtom int) int { return cm.grid.chains.cell[iAtom] }

// AssignCells wraps every atom into the box and rebuilds the cell chains.
func (cm *CellMaster) AssignCells() {
	cm.box.EnforcePBC()
	cm.grid.assign()
}

func checkRange(b Box, rc float64) error {
	if rc <= 0 {
		return ErrNoPotentials
	}
	if isUnbounded(rc) || 2*rc > minEdge(b.Size()) {
		return fmt.Errorf("%w: range %g, box %v", ErrBoxTooSmall, rc, b.Size())
	}
	return nil
}

type cellSource struct {
	cm *CellMaster
}

func (s *cellSource) name() string { return "cell" }

func (s *cellSource) init() error {
	rc := s.cm.Range()
	if err := checkRange(s.cm.box, rc); err != nil {
		return err
	}
	s.cm.box.EnforcePBC()
	return s.cm.grid.build(rc)
}

func (s *cellSource) ready() {
	if s.cm.grid.ready {
		return
	}
	if err := s.init(); err != nil {
		logrus.Panicf("engine: cell evaluator used without a valid grid: %v", err)
	}
}

func (s *cellSource) eachPair(visit func(i, j int, dr r3.Vec)) {
	s.ready()
	s.cm.grid.eachPair(func(i, j int, dr, _ r3.Vec) { visit(i, j, dr) })
}

func (s *cellSource) eachPartner(iAtom int, ri r3.Vec, visit func(j int, dr r3.Vec)) {
	s.ready()
	s.cm.grid.eachPartner(iAtom, ri, visit)
}

func (s *cellSource) updateAtom(iAtom int) {
	s.cm.box.Wrap(iAtom)
	if !s.cm.grid.ready {
		return
	}
	if s.cm.grid.move(iAtom) {
		s.cm.collector.ObserveCellMove()
	}
}

func (s *cellSource) invalidate() error {
	if !s.cm.grid.ready {
		return nil
	}
	s.cm.grid.ready = false
	return s.init()
}

func (s *cellSource) newAtom() {
	iAtom := s.cm.box.NumAtoms() - 1
	s.cm.box.Wrap(iAtom)
	if s.cm.grid.ready {
		s.cm.grid.add(iAtom)
	}
}

func (s *cellSource) removeAtom(iAtom int) {
	if s.cm.grid.ready {
		s.cm.grid.remove(iAtom)
	}
}
