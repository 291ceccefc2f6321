// Package box implements the periodic simulation cell: atom coordinates,
// atom and molecule topology, and minimum-image geometry.
//
// Atoms are stored species-blocked: all molecules of species 0 come first,
// then species 1, and so on. Within a molecule, atoms are contiguous, so a
// molecule is described by its first and last atom index.
package box

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/species"
)

var (
	// ErrBoxSize indicates a non-positive box edge.
	ErrBoxSize = errors.New("box: edge lengths must be positive")

	// ErrAtomIndex indicates an atom index outside the box.
	ErrAtomIndex = errors.New("box: atom index out of range")

	// ErrNotAtomic indicates an atom insertion/removal in a box whose
	// topology is not a single monatomic species.
	ErrNotAtomic = errors.New("box: atom insertion and removal need a single monatomic species")
)

type molecule struct {
	species     int
	first, last int
}

// Box is a rectangular periodic cell centered on the origin.
type Box struct {
	species *species.List
	size    r3.Vec

	positions    []r3.Vec
	atomTypes    []int
	atomMolecule []int
	molecules    []molecule
	numMolecules []int

	resizeListeners []func()
}

// New returns an empty box for the given species with unit edges.
func New(sl *species.List) *Box {
	return &Box{
		species:      sl,
		size:         r3.Vec{X: 1, Y: 1, Z: 1},
		numMolecules: make([]int, sl.Len()),
	}
}

// Species returns the species list the box was built from.
func (b *Box) Species() *species.List { return b.species }

// SetSize changes the box edges and notifies resize listeners.
// Coordinates are not rescaled.
func (b *Box) SetSize(x, y, z float64) error {
	if x <= 0 || y <= 0 || z <= 0 {
		return fmt.Errorf("%w: %g x %g x %g", ErrBoxSize, x, y, z)
	}
	b.size = r3.Vec{X: x, Y: y, Z: z}
	for _, fn := range b.resizeListeners {
		fn()
	}
	return nil
}

// Size returns the box edge lengths.
func (b *Box) Size() r3.Vec { return b.size }

// Volume returns the box volume.
func (b *Box) Volume() float64 { return b.size.X * b.size.Y * b.size.Z }

// OnResize registers fn to be called after every SetSize.
func (b *Box) OnResize(fn func()) {
	b.resizeListeners = append(b.resizeListeners, fn)
}

// SetNumMolecules sets the molecule count of a species and lays every
// molecule out at its template coordinates.
func (b *Box) SetNumMolecules(iSpecies, n int) error {
	if _, err := b.species.Get(iSpecies); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("box: negative molecule count %d", n)
	}
	b.numMolecules[iSpecies] = n
	b.layout()
	return nil
}

func (b *Box) layout() {
	b.positions = b.positions[:0]
	b.atomTypes = b.atomTypes[:0]
	b.atomMolecule = b.atomMolecule[:0]
	b.molecules = b.molecules[:0]
	for iSpecies, n := range b.numMolecules {
		sp, _ := b.species.Get(iSpecies)
		for m := 0; m < n; m++ {
			first := len(b.positions)
			iMolecule := len(b.molecules)
			for a := 0; a < sp.NumAtoms(); a++ {
				b.positions = append(b.positions, sp.Positions[a])
				b.atomTypes = append(b.atomTypes, sp.GlobalType(a))
				b.atomMolecule = append(b.atomMolecule, iMolecule)
			}
			b.molecules = append(b.molecules, molecule{species: iSpecies, first: first, last: len(b.positions) - 1})
		}
	}
}

// NumAtoms returns the total atom count.
func (b *Box) NumAtoms() int { return len(b.positions) }

// NumMolecules returns the total molecule count.
func (b *Box) NumMolecules() int { return len(b.molecules) }

// NumMoleculesOf returns the molecule count of one species.
func (b *Box) NumMoleculesOf(iSpecies int) int { return b.numMolecules[iSpecies] }

// Positions exposes the coordinate slice. The slice is replaced when atoms
// are added, so callers must not hold it across AddAtom.
func (b *Box) Positions() []r3.Vec { return b.positions }

// Position returns the coordinate of atom i.
func (b *Box) Position(i int) r3.Vec { return b.positions[i] }

// SetPosition moves atom i to r.
func (b *Box) SetPosition(i int, r r3.Vec) { b.positions[i] = r }

// AtomTypes exposes the global type of each atom.
func (b *Box) AtomTypes() []int { return b.atomTypes }

// AtomType returns the global type of atom i.
func (b *Box) AtomType(i int) int { return b.atomTypes[i] }

// Molecule returns the molecule that owns atom i.
func (b *Box) Molecule(iAtom int) int { return b.atomMolecule[iAtom] }

// MoleculeInfo returns the species and atom range of a molecule.
func (b *Box) MoleculeInfo(iMolecule int) (iSpecies, first, last int) {
	m := b.molecules[iMolecule]
	return m.species, m.first, m.last
}

// Mass returns the mass of atom i.
func (b *Box) Mass(iAtom int) float64 {
	m := b.molecules[b.atomMolecule[iAtom]]
	sp, _ := b.species.Get(m.species)
	return sp.Mass(iAtom - m.first)
}

// NearestImage maps a separation vector onto its minimum image.
func (b *Box) NearestImage(dr r3.Vec) r3.Vec {
	dr.X -= b.size.X * math.Round(dr.X/b.size.X)
	dr.Y -= b.size.Y * math.Round(dr.Y/b.size.Y)
	dr.Z -= b.size.Z * math.Round(dr.Z/b.size.Z)
	return dr
}

// Wrap folds atom i back into [-L/2, L/2) on every axis.
func (b *Box) Wrap(i int) {
	b.positions[i] = b.Fold(b.positions[i])
}

// Fold returns r mapped into the primary cell.
func (b *Box) Fold(r r3.Vec) r3.Vec {
	r.X -= b.size.X * math.Floor(r.X/b.size.X+0.5)
	r.Y -= b.size.Y * math.Floor(r.Y/b.size.Y+0.5)
	r.Z -= b.size.Z * math.Floor(r.Z/b.size.Z+0.5)
	return r
}

// EnforcePBC folds every atom into the primary cell.
func (b *Box) EnforcePBC() {
	for i := range b.positions {
		b.positions[i] = b.Fold(b.positions[i])
	}
}

func (b *Box) checkAtomic() error {
	if b.species.Len() != 1 || !b.species.IsPurelyAtomic() {
		return ErrNotAtomic
	}
	return nil
}

// AddAtom appends a monatomic molecule at r and returns its index.
func (b *Box) AddAtom(r r3.Vec) (int, error) {
	if err := b.checkAtomic(); err != nil {
		return 0, err
	}
	sp, _ := b.species.Get(0)
	i := len(b.positions)
	b.positions = append(b.positions, r)
	b.atomTypes = append(b.atomTypes, sp.GlobalType(0))
	b.atomMolecule = append(b.atomMolecule, len(b.molecules))
	b.molecules = append(b.molecules, molecule{first: i, last: i})
	b.numMolecules[0]++
	return i, nil
}

// RemoveAtom deletes atom i. The last atom takes over index i.
func (b *Box) RemoveAtom(i int) error {
	if err := b.checkAtomic(); err != nil {
		return err
	}
	last := len(b.positions) - 1
	if i < 0 || i > last {
		return fmt.Errorf("%w: %d", ErrAtomIndex, i)
	}
	b.positions[i] = b.positions[last]
	b.atomTypes[i] = b.atomTypes[last]
	b.positions = b.positions[:last]
	b.atomTypes = b.atomTypes[:last]
	b.atomMolecule = b.atomMolecule[:last]
	b.molecules = b.molecules[:last]
	b.numMolecules[0]--
	return nil
}
