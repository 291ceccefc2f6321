package box

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/species"
)

func newAtomicBox(t *testing.T, n int, l float64) *Box {
	t.Helper()
	sl, err := species.NewList(species.NewAtomic(1))
	require.NoError(t, err)
	b := New(sl)
	require.NoError(t, b.SetNumMolecules(0, n))
	require.NoError(t, b.SetSize(l, l, l))
	return b
}

func TestNearestImageAndFold(t *testing.T) {
	b := newAtomicBox(t, 1, 10)
	tests := []struct {
		in, image, fold r3.Vec
	}{
		{r3.Vec{X: 1, Y: -2, Z: 3}, r3.Vec{X: 1, Y: -2, Z: 3}, r3.Vec{X: 1, Y: -2, Z: 3}},
		{r3.Vec{X: 6, Y: -6, Z: 0}, r3.Vec{X: -4, Y: 4, Z: 0}, r3.Vec{X: -4, Y: 4, Z: 0}},
		{r3.Vec{X: 14, Y: 25, Z: -17}, r3.Vec{X: 4, Y: -5, Z: 3}, r3.Vec{X: 4, Y: -5, Z: 3}},
		{r3.Vec{X: -5}, r3.Vec{X: 5}, r3.Vec{X: -5}},
	}
	for _, tt := range tests {
		img := b.NearestImage(tt.in)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(tt.image, img)), 1e-12, "image of %v", tt.in)
		f := b.Fold(tt.in)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(tt.fold, f)), 1e-12, "fold of %v", tt.in)
	}
}

func TestSetSize(t *testing.T) {
	b := newAtomicBox(t, 1, 10)
	calls := 0
	b.OnResize(func() { calls++ })
	require.NoError(t, b.SetSize(2, 3, 4))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 24.0, b.Volume())
	assert.ErrorIs(t, b.SetSize(0, 1, 1), ErrBoxSize)
	assert.Equal(t, 1, calls)
}

func TestMoleculeLayout(t *testing.T) {
	sl, err := species.NewList(species.NewAtomic(1), species.NewChain(3, 1, 2))
	require.NoError(t, err)
	b := New(sl)
	require.NoError(t, b.SetNumMolecules(1, 2))
	require.NoError(t, b.SetNumMolecules(0, 3))

	assert.Equal(t, 9, b.NumAtoms())
	assert.Equal(t, 5, b.NumMolecules())
	assert.Equal(t, 2, b.NumMoleculesOf(1))

	iSpecies, first, last := b.MoleculeInfo(4)
	assert.Equal(t, 1, iSpecies)
	assert.Equal(t, 6, first)
	assert.Equal(t, 8, last)
	assert.Equal(t, 4, b.Molecule(7))
	assert.Equal(t, 1, b.AtomType(7))
	assert.Equal(t, 2.0, b.Mass(7))
	assert.Equal(t, 1.0, b.Mass(0))

	_, err = b.AddAtom(r3.Vec{})
	assert.ErrorIs(t, err, ErrNotAtomic)
	assert.Error(t, b.SetNumMolecules(2, 1))
}

func TestAddRemoveAtom(t *testing.T) {
	b := newAtomicBox(t, 3, 10)
	b.SetPosition(0, r3.Vec{X: 1})
	b.SetPosition(2, r3.Vec{X: 3})

	i, err := b.AddAtom(r3.Vec{X: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, i)
	assert.Equal(t, 4, b.NumMolecules())

	require.NoError(t, b.RemoveAtom(0))
	assert.Equal(t, 3, b.NumAtoms())
	assert.Equal(t, r3.Vec{X: 4}, b.Position(0))
	assert.Equal(t, 0, b.Molecule(0))
	assert.ErrorIs(t, b.RemoveAtom(5), ErrAtomIndex)
}

func TestInitFCC(t *testing.T) {
	b := newAtomicBox(t, 108, 3*math.Sqrt2*1.1)
	b.InitFCC()
	pos := b.Positions()
	l := b.Size().X
	a := l / 3
	minD2 := math.Inf(1)
	for i := range pos {
		assert.GreaterOrEqual(t, pos[i].X, -l/2)
		assert.Less(t, pos[i].X, l/2)
		for j := i + 1; j < len(pos); j++ {
			d2 := r3.Norm2(b.NearestImage(r3.Sub(pos[j], pos[i])))
			minD2 = math.Min(minD2, d2)
		}
	}
	assert.InDelta(t, a*a/2, minD2, 1e-9)
}

func TestEnforcePBC(t *testing.T) {
	b := newAtomicBox(t, 2, 4)
	b.SetPosition(0, r3.Vec{X: 5, Y: -3, Z: 2})
	b.SetPosition(1, r3.Vec{X: 1})
	b.Wrap(0)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(r3.Vec{X: 1, Y: 1, Z: -2}, b.Position(0))), 1e-12)
	b.SetPosition(1, r3.Vec{X: -9})
	b.EnforcePBC()
	assert.InDelta(t, -1, b.Position(1).X, 1e-12)
}
