package engine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdcore/internal/box"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/telemetry"
)

var _ = Describe("ListMaster", func() {
	const (
		rc       = 2.5
		nbrRange = 2.8
	)
	var (
		lj  potential.Pair
		b   *box.Box
		lm  *ListMaster
		ref *Master
		c   *telemetry.Collector
	)

	setup := func(n int, density float64) {
		lj = potential.NewLJ(1, 1, potential.TruncShift, rc)
		b = atomicBox(GinkgoT(), n, density, 0.05, 31)
		lm = NewList(b.Species(), b, 2, nbrRange)
		var err error
		c, err = telemetry.NewCollector(prometheus.NewRegistry())
		Expect(err).NotTo(HaveOccurred())
		lm.SetCollector(c)
		Expect(lm.SetPairPotential(0, 0, lj)).To(Succeed())
		ref = New(b.Species(), b)
		Expect(ref.SetPairPotential(0, 0, lj)).To(Succeed())
	}

	matchesBrute := func() {
		u, w := lm.ComputeAll()
		uRef, wRef := ref.ComputeAll()
		Expect(u).To(BeNumerically("~", uRef, 1e-9))
		Expect(w).To(BeNumerically("~", wRef, 1e-9))
	}

	shift := func(i int, d r3.Vec) {
		b.SetPosition(i, r3.Add(b.Position(i), d))
	}

	BeforeEach(func() { setup(108, 0.8) })

	It("is Valid after Init with one rebuild", func() {
		Expect(lm.Valid()).To(BeFalse())
		Expect(lm.Init()).To(Succeed())
		Expect(lm.Valid()).To(BeTrue())
		Expect(lm.Rebuilds()).To(Equal(1))
		Expect(lm.Skin()).To(BeNumerically("~", nbrRange-rc, 1e-12))
		Expect(testutil.ToFloat64(c.NeighborRebuilds)).To(Equal(1.0))
		matchesBrute()
	})

	Context("when atoms move", func() {
		BeforeEach(func() { Expect(lm.Init()).To(Succeed()) })

		It("stays Valid below half the skin and goes Stale past it", func() {
			shift(0, r3.Vec{X: 0.1})
			lm.UpdateAtom(0)
			Expect(lm.Valid()).To(BeTrue())

			shift(0, r3.Vec{X: 0.1})
			lm.UpdateAtom(0)
			Expect(lm.Valid()).To(BeFalse())

			matchesBrute()
			Expect(lm.Valid()).To(BeTrue())
			Expect(lm.Rebuilds()).To(Equal(2))
		})

		It("rebuilds from CheckUpdateNbrs only past half the skin", func() {
			for i := 0; i < b.NumAtoms(); i++ {
				shift(i, r3.Vec{Y: 0.1})
			}
			lm.CheckUpdateNbrs()
			Expect(lm.Rebuilds()).To(Equal(1))
			Expect(lm.Scans()).To(Equal(1))
			matchesBrute()

			shift(7, r3.Vec{Z: 0.2})
			lm.CheckUpdateNbrs()
			Expect(lm.Rebuilds()).To(Equal(2))
			Expect(lm.Valid()).To(BeTrue())
			matchesBrute()
		})

		It("forgets a displacement that is undone", func() {
			start := b.Position(5)
			shift(5, r3.Vec{X: 0.2})
			lm.UpdateAtom(5)
			Expect(lm.Valid()).To(BeFalse())

			b.SetPosition(5, start)
			lm.UpdateAtom(5)
			Expect(lm.Valid()).To(BeTrue())
			matchesBrute()
			Expect(lm.Rebuilds()).To(Equal(1))
		})

		It("keeps the runner-up displacement when the largest is undone", func() {
			shift(1, r3.Vec{Y: 0.1})
			lm.UpdateAtom(1)
			start := b.Position(2)
			shift(2, r3.Vec{Y: 0.14})
			lm.UpdateAtom(2)
			b.SetPosition(2, start)
			lm.UpdateAtom(2)
			Expect(lm.Valid()).To(BeTrue())

			shift(1, r3.Vec{Y: 0.06})
			lm.UpdateAtom(1)
			Expect(lm.Valid()).To(BeFalse())
			Expect(lm.Scans()).To(BeZero())
		})

		It("falls back to a full scan for a trial beyond the skin", func() {
			lm.ComputeAll()
			trial := r3.Add(b.Position(3), r3.Vec{X: 0.4})
			u := lm.ComputeOne(3, trial, true)
			lm.ResetAtomDU()
			Expect(u).To(BeNumerically("~", ref.ComputeOne(3, trial, true), 1e-12))
			ref.ResetAtomDU()
			Expect(testutil.ToFloat64(c.TrialFallbacks)).To(Equal(1.0))

			near := r3.Add(b.Position(3), r3.Vec{X: 0.05})
			lm.ComputeOne(3, near, true)
			lm.ResetAtomDU()
			Expect(testutil.ToFloat64(c.TrialFallbacks)).To(Equal(1.0))
		})
	})

	It("grows the neighbor capacity on overflow", func() {
		lm.SetNeighborCapacity(2)
		Expect(lm.Init()).To(Succeed())
		Expect(lm.NeighborCapacity()).To(BeNumerically(">", 2))
		Expect(testutil.ToFloat64(c.CapacityGrowths)).To(BeNumerically(">", 0))
		Expect(testutil.ToFloat64(c.NeighborCapacity)).To(Equal(float64(lm.NeighborCapacity())))
		matchesBrute()
	})

	It("rebuilds when down lists are switched on", func() {
		Expect(lm.Init()).To(Succeed())
		last := b.NumAtoms() - 1
		Expect(lm.DownNbrs(last)).To(BeNil())
		lm.SetDoDownNbrs(true)
		Expect(lm.Rebuilds()).To(Equal(2))
		Expect(lm.DownNbrs(last)).NotTo(BeEmpty())
	})

	It("forces a rebuild on Reset", func() {
		Expect(lm.Init()).To(Succeed())
		Expect(lm.Reset()).To(Succeed())
		Expect(lm.Rebuilds()).To(Equal(2))
	})

	It("rejects a neighbor range inside the cutoff", func() {
		short := NewList(b.Species(), b, 1, rc)
		Expect(short.SetPairPotential(0, 0, lj)).To(Succeed())
		Expect(short.Init()).To(MatchError(ErrNeighborRange))
	})

	Context("in a box wider than twice the neighbor range", func() {
		BeforeEach(func() {
			setup(256, 0.7)
			lm.SetDoDownNbrs(true)
			Expect(lm.Init()).To(Succeed())
		})

		It("lists every pair inside the neighbor range exactly once", func() {
			pos := b.Positions()
			nr2 := nbrRange * nbrRange
			for i := range pos {
				up := map[int]int{}
				for _, j := range lm.UpNbrs(i) {
					Expect(j).To(BeNumerically(">", i))
					up[j]++
				}
				for j := i + 1; j < len(pos); j++ {
					r2 := r3.Norm2(b.NearestImage(r3.Sub(pos[j], pos[i])))
					if r2 <= nr2 {
						Expect(up[j]).To(Equal(1), "pair %d-%d", i, j)
					} else {
						Expect(up).NotTo(HaveKey(j))
					}
				}
				for _, j := range lm.DownNbrs(i) {
					Expect(j).To(BeNumerically("<", i))
					Expect(lm.UpNbrs(j)).To(ContainElement(i))
				}
			}
		})

		It("serves single-atom energies from the lists", func() {
			lm.ComputeAll()
			for i := 0; i < b.NumAtoms(); i++ {
				Expect(lm.ComputeOne(i, b.Position(i), false)).To(BeNumerically("~", lm.OldEnergy(i), 1e-10))
				lm.ResetAtomDU()
			}
			Expect(testutil.ToFloat64(c.TrialFallbacks)).To(BeZero())
		})
	})
})
