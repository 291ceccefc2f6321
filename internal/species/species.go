// Package species describes the molecule templates a box is populated from.
//
// A [Species] lists the atom types of one molecule and the template
// coordinates of its atoms relative to the molecule origin. A [List] holds
// every species of a simulation and assigns each species' local atom types
// a global type index.
package species

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptySpecies indicates a species without atoms.
	ErrEmptySpecies = errors.New("species: species must have at least one atom")

	// ErrIndex indicates a species index outside the list.
	ErrIndex = errors.New("species: index out of range")
)

// Species is a molecule template.
type Species struct {
	// AtomTypes holds the local type of each atom, 0-based within the species.
	AtomTypes []int
	// Positions holds template coordinates for each atom.
	Positions []r3.Vec
	// Mass of each atom type, indexed like the local types.
	Masses []float64

	typeOffset int
}

// NewAtomic returns a single-atom species with the given mass.
func NewAtomic(mass float64) *Species {
	return &Species{
		AtomTypes: []int{0},
		Positions: []r3.Vec{{}},
		Masses:    []float64{mass},
	}
}

// NewChain returns a linear molecule of n identical atoms spaced bond apart
// along x.
func NewChain(n int, bond, mass float64) *Species {
	s := &Species{
		AtomTypes: make([]int, n),
		Positions: make([]r3.Vec, n),
		Masses:    []float64{mass},
	}
	for i := range s.Positions {
		s.Positions[i] = r3.Vec{X: float64(i) * bond}
	}
	return s
}

// NumAtoms returns the atom count of one molecule.
func (s *Species) NumAtoms() int { return len(s.AtomTypes) }

// NumAtomTypes returns the number of distinct local types.
func (s *Species) NumAtomTypes() int {
	n := 0
	for _, t := range s.AtomTypes {
		if t+1 > n {
			n = t + 1
		}
	}
	return n
}

// GlobalType maps the local type of atom iAtom to its index in the List.
func (s *Species) GlobalType(iAtom int) int {
	return s.typeOffset + s.AtomTypes[iAtom]
}

// Mass returns the mass of atom iAtom, 1 when no masses were given.
func (s *Species) Mass(iAtom int) float64 {
	t := s.AtomTypes[iAtom]
	if t < len(s.Masses) {
		return s.Masses[t]
	}
	return 1
}

// List is the ordered set of species in a simulation.
type List struct {
	all          []*Species
	numAtomTypes int
}

// NewList returns a list holding the given species in order.
func NewList(all ...*Species) (*List, error) {
	l := &List{}
	for _, s := range all {
		if _, err := l.Add(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add appends a species and returns its index.
func (l *List) Add(s *Species) (int, error) {
	if s == nil || s.NumAtoms() == 0 {
		return 0, ErrEmptySpecies
	}
	if len(s.Positions) != s.NumAtoms() {
		return 0, fmt.Errorf("species: %d atom types but %d positions", s.NumAtoms(), len(s.Positions))
	}
	s.typeOffset = l.numAtomTypes
	l.numAtomTypes += s.NumAtomTypes()
	l.all = append(l.all, s)
	return len(l.all) - 1, nil
}

// Len returns the number of species.
func (l *List) Len() int { return len(l.all) }

// Get returns species i.
func (l *List) Get(i int) (*Species, error) {
	if i < 0 || i >= len(l.all) {
		return nil, fmt.Errorf("%w: %d", ErrIndex, i)
	}
	return l.all[i], nil
}

// NumAtomTypes returns the total number of global atom types.
func (l *List) NumAtomTypes() int { return l.numAtomTypes }

// IsPurelyAtomic reports whether every species is a single atom.
func (l *List) IsPurelyAtomic() bool {
	for _, s := range l.all {
		if s.NumAtoms() > 1 {
			return false
		}
	}
	return true
}
