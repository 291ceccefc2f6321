package integrators

import (
	"context"
	"math"
	"math/rand"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/box"
	"github.com/san-kum/mdcore/internal/engine"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/sim"
	"github.com/san-kum/mdcore/internal/species"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

func ljBox(t *testing.T, n int, density float64) *box.Box {
	t.Helper()
	sl, err := species.NewList(species.NewAtomic(1))
	require.NoError(t, err)
	b := box.New(sl)
	require.NoError(t, b.SetNumMolecules(0, n))
	l := math.Cbrt(float64(n) / density)
	require.NoError(t, b.SetSize(l, l, l))
	b.InitFCC()
	return b
}

type evaluator interface {
	engine.Evaluator
	SetPairPotential(iType, jType int, p potential.Pair) error
}

func newEvaluator(t *testing.T, kind string, b *box.Box) evaluator {
	t.Helper()
	var ev evaluator
	switch kind {
	case "brute":
		ev = engine.New(b.Species(), b)
	case "cell":
		ev = engine.NewCell(b.Species(), b, 2)
	case "list":
		ev = engine.NewList(b.Species(), b, 1, 2.8)
	default:
		t.Fatalf("unknown evaluator %q", kind)
	}
	require.NoError(t, ev.SetPairPotential(0, 0, potential.NewLJ(1, 1, potential.TruncForceShift, 2.5)))
	require.NoError(t, ev.Init())
	return ev
}

func TestVerletEnergyConservation(t *testing.T) {
	for _, kind := range []string{"brute", "list"} {
		t.Run(kind, func(t *testing.T) {
			b := ljBox(t, 256, 0.8)
			v := NewVerlet(b, newEvaluator(t, kind, b), 0.002)
			v.RandomizeVelocities(1.0, rand.New(rand.NewSource(3)))

			result, err := sim.New(v).Run(context.Background(), sim.Config{Steps: 200, SampleEvery: 50})
			require.NoError(t, err)
			require.Empty(t, result.Errors)

			assert.Less(t, result.EnergyDrift, 5e-3)
		})
	}
}

func TestVerletStrategiesAgree(t *testing.T) {
	ref := ljBox(t, 256, 0.8)
	other := ljBox(t, 256, 0.8)
	vRef := NewVerlet(ref, newEvaluator(t, "brute", ref), 0.002)
	vList := NewVerlet(other, newEvaluator(t, "list", other), 0.002)
	vRef.RandomizeVelocities(1.0, rand.New(rand.NewSource(11)))
	vList.RandomizeVelocities(1.0, rand.New(rand.NewSource(11)))

	require.NoError(t, vRef.Reset())
	require.NoError(t, vList.Reset())
	for i := 0; i < 20; i++ {
		require.NoError(t, vRef.DoStep())
		require.NoError(t, vList.DoStep())
	}

	assert.InDelta(t, vRef.Sample().Potential, vList.Sample().Potential, 1e-8)
	for i := 0; i < ref.NumAtoms(); i++ {
		d := ref.NearestImage(r3.Sub(ref.Position(i), other.Position(i)))
		assert.Less(t, r3.Norm(d), 1e-8, "atom %d", i)
	}
}

func TestRandomizeVelocities(t *testing.T) {
	b := ljBox(t, 32, 0.5)
	v := NewVerlet(b, engine.New(b.Species(), b), 0.005)
	v.RandomizeVelocities(1.5, rand.New(rand.NewSource(1)))

	p := v.Momentum()
	assert.InDelta(t, 0, r3.Norm(p), 1e-10)
	assert.InDelta(t, 1.5, v.Temperature(), 1e-10)
	assert.InDelta(t, 0.5*3*31*1.5, v.KineticEnergy(), 1e-9)
}

func TestVerletEmptyBox(t *testing.T) {
	sl, err := species.NewList(species.NewAtomic(1))
	require.NoError(t, err)
	b := box.New(sl)
	v := NewVerlet(b, engine.New(sl, b), 0.005)
	assert.ErrorIs(t, v.Reset(), ErrTooFewAtoms)
}

func TestVerletUnstable(t *testing.T) {
	b := ljBox(t, 32, 0.5)
	ev := engine.New(b.Species(), b)
	require.NoError(t, ev.SetPairPotential(0, 0, potential.NewLJ(1, 1, potential.TruncShift, 2.5)))
	// two atoms on top of each other
	b.SetPosition(1, b.Position(0))

	v := NewVerlet(b, ev, 0.005)
	require.NoError(t, v.Reset())
	assert.ErrorIs(t, v.DoStep(), ErrUnstable)
}

func TestMCEnergyTracksFullComputation(t *testing.T) {
	for _, kind := range []string{"brute", "cell", "list"} {
		t.Run(kind, func(t *testing.T) {
			b := ljBox(t, 256, 0.8)
			ev := newEvaluator(t, kind, b)
			r := rand.New(rand.NewSource(5))

			mc := NewMC(ev, r, 1.5)
			mc.AddMove(NewDisplacement(b, ev, r, 0.15))
			result, err := sim.New(mc).Run(context.Background(), sim.Config{Steps: 3000, SampleEvery: 1000})
			require.NoError(t, err)
			require.Empty(t, result.Errors)

			cached := ev.UTotalFromAtoms()
			u, _ := ev.ComputeAll()
			assert.InDelta(t, u, mc.Energy(), 1e-7*math.Abs(u))
			assert.InDelta(t, u, cached, 1e-7*math.Abs(u))

			rate := mc.AcceptanceRate()
			assert.Greater(t, rate, 0.1)
			assert.Less(t, rate, 0.95)
			last := result.Samples[len(result.Samples)-1]
			assert.Equal(t, 3000, last.Trials)
		})
	}
}

func TestMCNeighborListsCheckedOnlyWhenStale(t *testing.T) {
	tests := []struct {
		name     string
		stepSize float64
		steps    int
	}{
		// no atom can travel half the skin
		{"small steps", 0.03, 200},
		{"larger steps", 0.1, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ljBox(t, 256, 0.8)
			lm := engine.NewList(b.Species(), b, 1, 2.8)
			lm.SetDoDownNbrs(true)
			require.NoError(t, lm.SetPairPotential(0, 0, potential.NewLJ(1, 1, potential.TruncForceShift, 2.5)))
			require.NoError(t, lm.Init())

			r := rand.New(rand.NewSource(11))
			mc := NewMC(lm, r, 1.5)
			mc.AddMove(NewDisplacement(b, lm, r, tt.stepSize))
			require.NoError(t, mc.Reset())
			for i := 0; i < tt.steps; i++ {
				require.NoError(t, mc.DoStep())
			}

			// the first rebuild is Init's; every later one follows at most one scan
			assert.LessOrEqual(t, lm.Scans(), lm.Rebuilds()-1)
			assert.Less(t, lm.Rebuilds(), tt.steps/10+2)
			if tt.stepSize < 0.05 {
				assert.Equal(t, 1, lm.Rebuilds())
				assert.Zero(t, lm.Scans())
			} else {
				assert.Greater(t, lm.Rebuilds(), 1)
			}

			u, _ := lm.ComputeAll()
			assert.InDelta(t, u, mc.Energy(), 1e-7*math.Abs(u))
		})
	}
}

func TestDisplacementReject(t *testing.T) {
	b := ljBox(t, 108, 0.8)
	ev := newEvaluator(t, "brute", b)
	u0, _ := ev.ComputeAll()

	d := NewDisplacement(b, ev, rand.New(rand.NewSource(2)), 0.3)
	require.True(t, d.DoTrial())
	moved := d.iAtom
	old := d.old
	d.Reject()

	assert.Equal(t, old, b.Position(moved))
	assert.InDelta(t, u0, ev.UTotalFromAtoms(), 1e-10)
	u1, _ := ev.ComputeAll()
	assert.InDelta(t, u0, u1, 1e-10)
}

func TestDisplacementAdjustStep(t *testing.T) {
	b := ljBox(t, 32, 0.5)
	ev := newEvaluator(t, "brute", b)
	d := NewDisplacement(b, ev, rand.New(rand.NewSource(2)), 0.5)

	d.AdjustStep(0.5, 1)
	assert.Equal(t, 0.5, d.StepSize(), "no trials leaves the step alone")

	d.trials, d.accepted = 10, 9
	d.AdjustStep(0.5, 0.51)
	assert.Equal(t, 0.51, d.StepSize())

	d.trials, d.accepted = 10, 1
	d.AdjustStep(0.5, 1)
	assert.InDelta(t, 0.51*0.95, d.StepSize(), 1e-12)
}

func TestMCWithoutMoves(t *testing.T) {
	b := ljBox(t, 32, 0.5)
	mc := NewMC(newEvaluator(t, "brute", b), rand.New(rand.NewSource(1)), 1)
	assert.ErrorIs(t, mc.Reset(), ErrNoMoves)
}
