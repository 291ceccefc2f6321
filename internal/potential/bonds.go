package potential

import (
	"fmt"
	"sort"
)

// Bond groups the intramolecular atom pairs that share one potential.
type Bond struct {
	Pairs     [][2]int
	Potential Pair
}

// Partner is one bonded neighbor of an atom, as an offset within the molecule.
type Partner struct {
	Atom      int
	Potential Pair
}

// Bonds is the per-species registry of bonded pairs. Atom indices are
// offsets within a molecule of the species.
type Bonds struct {
	bonds    [][]Bond
	partners [][][]Partner
	offsets  [][][]int
}

// NewBonds returns an empty registry for numSpecies species.
func NewBonds(numSpecies int) *Bonds {
	return &Bonds{
		bonds:    make([][]Bond, numSpecies),
		partners: make([][][]Partner, numSpecies),
		offsets:  make([][][]int, numSpecies),
	}
}

// Add registers pairs of species iSpecies as bonded through p.
// Partner offsets are kept sorted so membership is a binary search.
func (b *Bonds) Add(iSpecies int, pairs [][2]int, p Pair) error {
	if iSpecies < 0 || iSpecies >= len(b.bonds) {
		return fmt.Errorf("potential: bond species %d out of range", iSpecies)
	}
	for _, pr := range pairs {
		if pr[0] == pr[1] || pr[0] < 0 || pr[1] < 0 {
			return fmt.Errorf("potential: invalid bonded pair %v", pr)
		}
	}
	b.bonds[iSpecies] = append(b.bonds[iSpecies], Bond{Pairs: pairs, Potential: p})
	for _, pr := range pairs {
		b.link(iSpecies, pr[0], pr[1], p)
		b.link(iSpecies, pr[1], pr[0], p)
	}
	return nil
}

func (b *Bonds) link(iSpecies, a, c int, p Pair) {
	for len(b.partners[iSpecies]) <= a {
		b.partners[iSpecies] = append(b.partners[iSpecies], nil)
		b.offsets[iSpecies] = append(b.offsets[iSpecies], nil)
	}
	ps := append(b.partners[iSpecies][a], Partner{Atom: c, Potential: p})
	sort.Slice(ps, func(x, y int) bool { return ps[x].Atom < ps[y].Atom })
	b.partners[iSpecies][a] = ps

	offs := make([]int, len(ps))
	for k, q := range ps {
		offs[k] = q.Atom
	}
	b.offsets[iSpecies][a] = offs
}

// Of returns the bonds registered for a species.
func (b *Bonds) Of(iSpecies int) []Bond { return b.bonds[iSpecies] }

// Partners returns the bonded partners of atom offset a, sorted by offset.
func (b *Bonds) Partners(iSpecies, a int) []Partner {
	if a >= len(b.partners[iSpecies]) {
		return nil
	}
	return b.partners[iSpecies][a]
}

// IsBonded reports whether offsets a and c of a species are bonded.
func (b *Bonds) IsBonded(iSpecies, a, c int) bool {
	if a >= len(b.offsets[iSpecies]) {
		return false
	}
	offs := b.offsets[iSpecies][a]
	k := sort.SearchInts(offs, c)
	return k < len(offs) && offs[k] == c
}

// Empty reports whether no bonds are registered.
func (b *Bonds) Empty() bool {
	for _, bs := range b.bonds {
		if len(bs) > 0 {
			return false
		}
	}
	return true
}
