// Package rng hands out explicitly seeded random streams. Nothing in this
// module draws from the global math/rand source; every component that needs
// randomness receives a *rand.Rand from a Partitioned source.
package rng

import (
	"hash/fnv"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// SubsystemMoves drives Monte Carlo atom selection, displacements and
	// acceptance.
	SubsystemMoves = "moves"

	// SubsystemVelocities drives Maxwell-Boltzmann velocity initialization.
	SubsystemVelocities = "velocities"

	// SubsystemConfig drives random perturbation of initial configurations.
	SubsystemConfig = "config"
)

// Partitioned provides deterministic, isolated streams per subsystem.
//
// A subsystem's seed is the master seed XOR fnv1a64(name), so adding a new
// subsystem never shifts the draws of an existing one.
//
// Not safe for concurrent use.
type Partitioned struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// New returns a Partitioned source for the master seed.
func New(seed int64) *Partitioned {
	return &Partitioned{seed: seed, subsystems: make(map[string]*rand.Rand)}
}

// Seed returns the master seed.
func (p *Partitioned) Seed() int64 { return p.seed }

// ForSubsystem returns the cached stream for name, creating it on first use.
func (p *Partitioned) ForSubsystem(name string) *rand.Rand {
	if r, ok := p.subsystems[name]; ok {
		return r
	}
	r := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = r
	return r
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// OnSphere returns a uniformly distributed point on the unit sphere
// (Allen & Tildesley, Computer Simulation of Liquids, p. 349).
func OnSphere(r *rand.Rand) r3.Vec {
	var z1, z2, zsq float64
	for {
		z1 = 2*r.Float64() - 1
		z2 = 2*r.Float64() - 1
		zsq = z1*z1 + z2*z2
		if zsq <= 1 {
			break
		}
	}
	ranh := 2 * math.Sqrt(1-zsq)
	return r3.Vec{X: z1 * ranh, Y: z2 * ranh, Z: 1 - 2*zsq}
}

// InSphere returns a uniformly distributed point inside the unit sphere.
func InSphere(r *rand.Rand) r3.Vec {
	rad := math.Cbrt(r.Float64())
	var u, w, s float64
	for {
		u = 1 - 2*r.Float64()
		w = 1 - 2*r.Float64()
		s = u*u + w*w
		if s <= 1 {
			break
		}
	}
	ra := 2 * rad * math.Sqrt(1-s)
	return r3.Vec{X: ra * u, Y: ra * w, Z: rad * (2*s - 1)}
}

// Gaussian returns a vector of independent standard normal components.
func Gaussian(r *rand.Rand) r3.Vec {
	return r3.Vec{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}
}
