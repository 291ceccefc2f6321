package potential

import (
	"fmt"
	"math"
)

// Table maps an unordered pair of atom types to a potential and its
// squared cutoff. It is stored as a square row-major matrix kept
// symmetric by Set.
type Table struct {
	numTypes int
	pots     []Pair
	rc2      []float64
}

// NewTable returns an empty table for numTypes atom types.
func NewTable(numTypes int) *Table {
	return &Table{
		numTypes: numTypes,
		pots:     make([]Pair, numTypes*numTypes),
		rc2:      make([]float64, numTypes*numTypes),
	}
}

// NumTypes returns the table dimension.
func (t *Table) NumTypes() int { return t.numTypes }

// Set assigns p to both (iType, jType) and (jType, iType).
func (t *Table) Set(iType, jType int, p Pair) error {
	if iType < 0 || jType < 0 || iType >= t.numTypes || jType >= t.numTypes {
		return fmt.Errorf("%w: (%d, %d) with %d types", ErrTypeIndex, iType, jType, t.numTypes)
	}
	rc2 := 0.0
	if p != nil {
		rc := p.Cutoff()
		rc2 = rc * rc
	}
	for _, k := range [2]int{iType*t.numTypes + jType, jType*t.numTypes + iType} {
		t.pots[k] = p
		t.rc2[k] = rc2
	}
	return nil
}

// Get returns the potential for a type pair and its squared cutoff. The
// potential is nil when the pair does not interact.
func (t *Table) Get(iType, jType int) (Pair, float64) {
	k := iType*t.numTypes + jType
	return t.pots[k], t.rc2[k]
}

// Range returns the largest cutoff in the table, +Inf if any potential is
// unbounded and 0 if the table is empty.
func (t *Table) Range() float64 {
	r := 0.0
	for _, p := range t.pots {
		if p == nil {
			continue
		}
		r = math.Max(r, p.Cutoff())
	}
	return r
}
