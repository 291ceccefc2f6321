package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/box"
	"github.com/san-kum/mdcore/internal/potential"
)

func TestStrategiesAgree(t *testing.T) {
	tests := []struct {
		name   string
		pot    potential.Pair
		n      int
		jitter float64
	}{
		{"lj simple", potential.NewLJ(1, 1, potential.TruncSimple, 2.5), 108, 0.1},
		{"lj shifted", potential.NewLJ(1, 1, potential.TruncShift, 2.5), 108, 0.1},
		{"lj force shifted", potential.NewLJ(1, 1, potential.TruncForceShift, 2.2), 256, 0.15},
		{"soft sphere", potential.NewSoftSphere(1, 1, 12, 2.0), 108, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := atomicBox(t, tt.n, 0.8, tt.jitter, 7)
			ref := New(b.Species(), b)
			require.NoError(t, ref.SetPairPotential(0, 0, tt.pot))
			uRef, wRef := ref.ComputeAll()
			fRef := forcesOf(ref)
			assert.InDelta(t, imageSum(b, tt.pot), uRef, 1e-9*math.Abs(uRef))

			for _, s := range strategies(tt.pot, tt.pot.Cutoff()+0.3) {
				ev := newInit(t, s, b)
				u, w := ev.ComputeAll()
				assert.InDelta(t, uRef, u, 1e-9*math.Abs(uRef), s.name)
				assert.InDelta(t, wRef, w, 1e-9*math.Abs(wRef), s.name)
				f := forcesOf(ev)
				for i := range f {
					assert.InDelta(t, 0, r3.Norm(r3.Sub(f[i], fRef[i])), 1e-9, "%s atom %d", s.name, i)
				}
				assert.InDelta(t, u, ev.UTotalFromAtoms(), 1e-9*math.Abs(u), s.name)
			}
		})
	}
}

func TestCutoffIsStrict(t *testing.T) {
	const rc = 2.0
	lj := potential.NewLJ(1, 1, potential.TruncSimple, rc)
	for _, s := range strategies(lj, 2.5) {
		t.Run(s.name, func(t *testing.T) {
			b := atomicBox(t, 2, 0.002, 0, 1)
			b.SetPosition(0, r3.Vec{})
			b.SetPosition(1, r3.Vec{X: rc})
			ev := newInit(t, s, b)

			u, w := ev.ComputeAll()
			assert.Zero(t, u)
			assert.Zero(t, w)

			b.SetPosition(1, r3.Vec{X: rc - 1e-3})
			ev.UpdateAtom(1)
			if nu, ok := ev.(NeighborUpdater); ok {
				nu.CheckUpdateNbrs()
			}
			u, _ = ev.ComputeAll()
			assert.InDelta(t, lj.U((rc-1e-3)*(rc-1e-3)), u, 1e-12)
		})
	}
}

func TestFCCLatticeEnergy(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncSimple, 2.5)
	b := atomicBox(t, 256, 1.0, 0, 1)
	want := imageSum(b, lj)
	for _, s := range strategies(lj, 2.9) {
		ev := newInit(t, s, b)
		u, _ := ev.ComputeAll()
		assert.InDelta(t, want, u, 1e-9*math.Abs(want), s.name)
		for i := 0; i < b.NumAtoms(); i++ {
			assert.InDelta(t, 2*want/256, ev.OldEnergy(i), 1e-9, "%s atom %d", s.name, i)
		}
		f := forcesOf(ev)
		for i := range f {
			assert.InDelta(t, 0, r3.Norm(f[i]), 1e-9)
		}
	}
}

func TestForcesMatchFiniteDifference(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncForceShift, 2.5)
	b := atomicBox(t, 108, 0.7, 0.1, 3)
	ev := New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, lj))
	f := forcesOf(ev)

	const h = 1e-6
	r0 := b.Position(5)
	for _, axis := range []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
		b.SetPosition(5, r3.Add(r0, r3.Scale(h, axis)))
		up, _ := ev.ComputeAll()
		b.SetPosition(5, r3.Sub(r0, r3.Scale(h, axis)))
		dn, _ := ev.ComputeAll()
		b.SetPosition(5, r0)
		assert.InDelta(t, -(up-dn)/(2*h), r3.Dot(f[5], axis), 1e-5)
	}

	var total r3.Vec
	for _, fi := range f {
		total = r3.Add(total, fi)
	}
	assert.InDelta(t, 0, r3.Norm(total), 1e-9)
}

func TestComputeOneMatchesCache(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncShift, 2.5)
	for _, s := range strategies(lj, 2.8) {
		t.Run(s.name, func(t *testing.T) {
			b := atomicBox(t, 108, 0.8, 0.1, 11)
			ev := newInit(t, s, b)
			ev.ComputeAll()
			for i := 0; i < b.NumAtoms(); i++ {
				ev.ResetAtomDU()
				assert.InDelta(t, ev.OldEnergy(i), ev.ComputeOne(i, b.Position(i), false), 1e-10)
			}
			ev.ResetAtomDU()
		})
	}
}

// runTrials drives single-atom Metropolis-style trials with random
// acceptance and returns the running energy.
func runTrials(t *testing.T, b *box.Box, ev Evaluator, u0 float64, trials int, seed int64) float64 {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	uTot := u0
	for k := 0; k < trials; k++ {
		if nu, ok := ev.(NeighborUpdater); ok {
			nu.CheckUpdateNbrs()
		}
		i := rng.Intn(b.NumAtoms())
		rOld := b.Position(i)
		ev.ResetAtomDU()
		uOld := ev.ComputeOne(i, rOld, false)
		d := r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
		b.SetPosition(i, r3.Add(rOld, r3.Scale(0.3, d)))
		ev.UpdateAtom(i)
		uNew := ev.ComputeOne(i, b.Position(i), true)
		if rng.Float64() < 0.5 {
			ev.ProcessAtomU(1)
			uTot += uNew - uOld
			continue
		}
		b.SetPosition(i, rOld)
		ev.UpdateAtom(i)
		ev.ResetAtomDU()
	}
	return uTot
}

func TestIncrementalMatchesFull(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncShift, 2.5)
	for _, s := range strategies(lj, 2.8) {
		t.Run(s.name, func(t *testing.T) {
			b := atomicBox(t, 108, 0.8, 0.05, 5)
			ev := newInit(t, s, b)
			u0, _ := ev.ComputeAll()

			uRun := runTrials(t, b, ev, u0, 400, 17)

			ref := New(b.Species(), b)
			require.NoError(t, ref.SetPairPotential(0, 0, lj))
			uRef, _ := ref.ComputeAll()
			assert.InDelta(t, uRef, uRun, 1e-8)
			assert.InDelta(t, uRef, ev.UTotalFromAtoms(), 1e-8)
			for i, ui := range ref.AtomEnergies() {
				assert.InDelta(t, 2*ui, ev.OldEnergy(i), 1e-8, "atom %d", i)
			}
		})
	}
}

func TestPendingDeltas(t *testing.T) {
	b := atomicBox(t, 32, 0.5, 0.05, 2)
	ev := New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, potential.NewLJ(1, 1, potential.TruncShift, 2.5)))
	ev.ComputeAll()
	before := append([]float64(nil), ev.AtomEnergies()...)

	ev.ComputeOne(3, b.Position(3), false)
	assert.NotEmpty(t, ev.DirtyAtoms())
	assert.Equal(t, 3, ev.DirtyAtoms()[0])

	ev.ResetAtomDU()
	assert.Empty(t, ev.DirtyAtoms())
	ev.ProcessAtomU(1)
	assert.Equal(t, before, ev.AtomEnergies())

	// removing then re-adding the same pairs is a no-op
	ev.ComputeOne(3, b.Position(3), false)
	ev.ComputeOne(3, b.Position(3), true)
	ev.ProcessAtomU(1)
	for i := range before {
		assert.InDelta(t, before[i], ev.AtomEnergies()[i], 1e-12)
	}
}

func TestRemoveAndAddAtom(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncSimple, 2.5)
	for _, s := range strategies(lj, 2.9) {
		t.Run(s.name, func(t *testing.T) {
			b := atomicBox(t, 108, 0.8, 0.1, 13)
			ev := newInit(t, s, b)
			ref := New(b.Species(), b)
			require.NoError(t, ref.SetPairPotential(0, 0, lj))

			require.NoError(t, b.RemoveAtom(10))
			ev.RemoveAtom(10)
			require.NoError(t, b.RemoveAtom(b.NumAtoms()-1))
			ev.RemoveAtom(b.NumAtoms())
			u, _ := ev.ComputeAll()
			uRef, _ := ref.ComputeAll()
			assert.InDelta(t, uRef, u, 1e-9*math.Abs(uRef))

			_, err := b.AddAtom(r3.Vec{X: 0.1, Y: -0.2, Z: 2.4})
			require.NoError(t, err)
			ev.NewAtom()
			u, _ = ev.ComputeAll()
			uRef, _ = ref.ComputeAll()
			assert.InDelta(t, uRef, u, 1e-9*math.Abs(uRef))
		})
	}
}

func TestUnsetPairIsSkipped(t *testing.T) {
	b := atomicBox(t, 32, 0.8, 0, 1)
	ev := New(b.Species(), b)
	u, w := ev.ComputeAll()
	assert.Zero(t, u)
	assert.Zero(t, w)
}

func TestPairHookSeesEveryPair(t *testing.T) {
	lj := potential.NewLJ(1, 1, potential.TruncSimple, 2.5)
	b := atomicBox(t, 108, 0.8, 0.1, 4)
	for _, s := range strategies(lj, 2.8) {
		ev := newInit(t, s, b)
		seen := map[[2]int]int{}
		uSum := 0.0
		var hook countingHook = func(i, j int, _ r3.Vec, u, _, _ float64) {
			if i > j {
				i, j = j, i
			}
			seen[[2]int{i, j}]++
			uSum += u
		}
		u, _ := ev.ComputeAll(hook)
		assert.InDelta(t, u, uSum, 1e-9*math.Abs(u), s.name)
		for pr, c := range seen {
			assert.Equal(t, 1, c, "%s pair %v", s.name, pr)
		}
	}
}

type countingHook func(i, j int, dr r3.Vec, u, du, d2u float64)

func (h countingHook) Hooks() Hooks { return Hooks{Pair: h} }

func TestPotentialChangeAfterInit(t *testing.T) {
	short := potential.NewLJ(1, 1, potential.TruncSimple, 1.5)
	long := potential.NewLJ(1, 1, potential.TruncSimple, 3.0)
	tests := []struct {
		name string
		make func(b *box.Box) Evaluator
	}{
		{"cell/1", func(b *box.Box) Evaluator { return NewCell(b.Species(), b, 1) }},
		{"cell/2", func(b *box.Box) Evaluator { return NewCell(b.Species(), b, 2) }},
		{"list/1", func(b *box.Box) Evaluator { return NewList(b.Species(), b, 1, 3.3) }},
		{"list/2/down", func(b *box.Box) Evaluator {
			lm := NewList(b.Species(), b, 2, 3.3)
			lm.SetDoDownNbrs(true)
			return lm
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := atomicBox(t, 500, 0.5, 0.1, 9)
			ev := tt.make(b)
			bs := ev.(bondSetter)
			require.NoError(t, bs.SetPairPotential(0, 0, short))
			require.NoError(t, ev.Init())
			ev.ComputeAll()

			require.NoError(t, bs.SetPairPotential(0, 0, long))
			ref := New(b.Species(), b)
			require.NoError(t, ref.SetPairPotential(0, 0, long))
			uRef, wRef := ref.ComputeAll()
			u, w := ev.ComputeAll()
			assert.InDelta(t, uRef, u, 1e-9*math.Abs(uRef))
			assert.InDelta(t, wRef, w, 1e-9*math.Abs(wRef))
			assert.InDelta(t, u, ev.UTotalFromAtoms(), 1e-9*math.Abs(u))
		})
	}
}

func TestPotentialChangeAfterInitReportsRange(t *testing.T) {
	lj := func(rc float64) potential.Pair { return potential.NewLJ(1, 1, potential.TruncSimple, rc) }
	tests := []struct {
		name string
		make func(b *box.Box) Evaluator
		rc   float64
		want error
	}{
		{"cell beyond half box", func(b *box.Box) Evaluator { return NewCell(b.Species(), b, 1) }, 6, ErrBoxTooSmall},
		{"list beyond neighbor range", func(b *box.Box) Evaluator { return NewList(b.Species(), b, 1, 2) }, 3, ErrNeighborRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := atomicBox(t, 500, 0.5, 0, 1)
			ev := tt.make(b)
			bs := ev.(bondSetter)
			require.NoError(t, bs.SetPairPotential(0, 0, lj(1.5)))
			require.NoError(t, ev.Init())
			assert.ErrorIs(t, bs.SetPairPotential(0, 0, lj(tt.rc)), tt.want)
		})
	}
}
