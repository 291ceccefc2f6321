package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/potential"
)

var (
	_ DataSource = (*Pressure)(nil)
	_ DataSource = (*HMA)(nil)
)

func TestPressure(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncSimple, 3)
	b := atomicBox(t, 2, 0.002, 0, 1)
	b.SetPosition(0, r3.Vec{})
	b.SetPosition(1, r3.Vec{Y: 1.3})
	ev := New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, lj))

	p := NewPressure(b, 1.5)
	_, w := ev.ComputeAll(p)
	_, du, _ := lj.U012(1.3 * 1.3)
	assert.InDelta(t, du, w, 1e-12)
	assert.InDelta(t, 2*1.5/1000-du/3000, p.Data()[0], 1e-12)
	assert.Equal(t, 1, p.NumData())
}

func TestFinishedWithoutForces(t *testing.T) {
	b := atomicBox(t, 32, 0.8, 0.05, 1)
	ev := New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, potential.NewLJ(1, 1, potential.TruncSimple, 1.5)))

	calls := 0
	u, w := ev.ComputeAll(CallbackFunc(func(uTot, virialTot float64, forces []r3.Vec) {
		calls++
		assert.Nil(t, forces)
		assert.NotZero(t, uTot)
		assert.NotZero(t, virialTot)
	}))
	assert.Equal(t, 1, calls)

	ev.AddCallback(ForceCallback{})
	var got []r3.Vec
	u2, w2 := ev.ComputeAll(CallbackFunc(func(_, _ float64, forces []r3.Vec) { got = forces }))
	assert.Len(t, got, b.NumAtoms())
	assert.Equal(t, u, u2)
	assert.Equal(t, w, w2)
}

func TestHMA(t *testing.T) {
	const temp, pHarm = 0.1, 2.0
	lj := potential.NewLJ(1, 1, potential.TruncShift, 2.5)
	b := atomicBox(t, 256, 1.0, 0, 1)
	ev := NewCell(b.Species(), b, 2)
	require.NoError(t, ev.SetPairPotential(0, 0, lj))
	require.NoError(t, ev.Init())

	h := NewHMA(b, temp, pHarm)
	n := float64(b.NumAtoms())
	vol := b.Volume()
	uHarm := 1.5 * (n - 1) * temp

	uLat, wLat := ev.ComputeAll(h)
	d := h.Data()
	require.Len(t, d, 4)
	assert.InDelta(t, uLat, d[0], 1e-12)
	assert.InDelta(t, n*temp/vol-wLat/(3*vol), d[1], 1e-12)
	assert.InDelta(t, uHarm+uLat, d[2], 1e-9)
	assert.InDelta(t, pHarm-wLat/(3*vol), d[3], 1e-9)

	lattice := append([]r3.Vec(nil), b.Positions()...)
	jitterAtoms(b, 0.03, 8)
	ev.AssignCells()
	u, w := ev.ComputeAll(h)
	fdotdr := 0.0
	dr0 := r3.Sub(b.Position(0), lattice[0])
	for i, f := range ev.Forces() {
		dr := b.NearestImage(r3.Sub(r3.Sub(b.Position(i), lattice[i]), dr0))
		fdotdr += r3.Dot(f, dr)
	}
	fV := (pHarm/temp - n/vol) / (3 * (n - 1))
	d = h.Data()
	assert.InDelta(t, uHarm+u+0.5*fdotdr, d[2], 1e-9)
	assert.InDelta(t, pHarm-w/(3*vol)+fV*fdotdr, d[3], 1e-9)
}

func TestHMAAnharmonicOnLattice(t *testing.T) {
	const temp = 0.5
	lj := potential.NewLJ(1, 1, potential.TruncShift, 2.5)
	b := atomicBox(t, 108, 0.8, 0, 1)
	ev := New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, lj))

	h := NewHMA(b, temp, 1)
	h.SetReturnAnharmonic(true, ev)
	ev.ComputeAll(h)
	d := h.Data()
	assert.InDelta(t, -1.5*107*temp, d[0], 1e-9)
	assert.InDelta(t, 0, d[2], 1e-9)
	assert.InDelta(t, 0, d[3], 1e-9)
}

func TestHMASingleAtom(t *testing.T) {
	b := atomicBox(t, 1, 0.01, 0, 1)
	ev := New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, potential.NewLJ(1, 1, potential.TruncSimple, 2)))
	h := NewHMA(b, 1, 3)
	ev.ComputeAll(h)
	want := []float64{0, 1 / b.Volume(), 0, 3}
	assert.InDeltaSlice(t, want, h.Data(), 1e-12)
}
