package engine

import "gonum.org/v1/gonum/spatial/r3"

// Box is the spatial container the engine reads coordinates and topology
// from. The engine never owns it; the caller reports every change through
// UpdateAtom, NewAtom and RemoveAtom.
type Box interface {
	NumAtoms() int
	Positions() []r3.Vec
	AtomTypes() []int
	Size() r3.Vec
	NearestImage(dr r3.Vec) r3.Vec
	Fold(r r3.Vec) r3.Vec
	Wrap(iAtom int)
	EnforcePBC()
	Molecule(iAtom int) int
	MoleculeInfo(iMolecule int) (iSpecies, first, last int)
	NumMolecules() int
	OnResize(fn func())
}

// SpeciesSet is the part of the species list the engine needs.
type SpeciesSet interface {
	Len() int
	NumAtomTypes() int
	IsPurelyAtomic() bool
}

// Evaluator is the contract shared by the brute-force, cell and neighbor
// list strategies.
type Evaluator interface {
	Init() error
	ComputeAll(callbacks ...Callback) (uTot, virialTot float64)
	ComputeOne(iAtom int, ri r3.Vec, isTrial bool) float64
	ComputeOneMolecule(iMolecule int, isTrial bool) float64
	UpdateAtom(iAtom int)
	NewAtom()
	RemoveAtom(iAtom int)
	OldEnergy(iAtom int) float64
	ResetAtomDU()
	ProcessAtomU(coeff int)
	UTotalFromAtoms() float64
	Forces() []r3.Vec
}

// NeighborUpdater is implemented by evaluators that cache neighbors across
// steps and must be told once per step to validate them.
type NeighborUpdater interface {
	CheckUpdateNbrs()
}

// TrackingNeighborUpdater also follows displacements reported through
// UpdateAtom. A driver that reports every move may skip CheckUpdateNbrs
// while Valid holds.
type TrackingNeighborUpdater interface {
	NeighborUpdater
	Valid() bool
}

var (
	_ Evaluator       = (*Master)(nil)
	_ Evaluator       = (*CellMaster)(nil)
	_ Evaluator       = (*ListMaster)(nil)
	_ NeighborUpdater = (*ListMaster)(nil)

	_ TrackingNeighborUpdater = (*ListMaster)(nil)
)

func minEdge(size r3.Vec) float64 {
	m := size.X
	if size.Y < m {
		m = size.Y
	}
	if size.Z < m {
		m = size.Z
	}
	return m
}
