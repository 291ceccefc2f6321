package engine

import "gonum.org/v1/gonum/spatial/r3"

// Hooks holds the optional handlers a callback contributes to ComputeAll.
// Nil handlers are skipped.
type Hooks struct {
	// Pair runs for every interacting pair with dr pointing from iAtom to
	// jAtom, after the strict cutoff and exclusion checks.
	Pair func(iAtom, jAtom int, dr r3.Vec, u, du, d2u float64)
	// Finished runs once all pairs and bonds are summed. forces is nil
	// unless some callback in the computation takes forces.
	Finished func(uTot, virialTot float64, forces []r3.Vec)
	// TakesForces asks ComputeAll to accumulate forces.
	TakesForces bool
}

// Callback observes a full computation.
type Callback interface {
	Hooks() Hooks
}

// DataSource is implemented by callbacks that derive a fixed-length data
// vector from each computation.
type DataSource interface {
	NumData() int
	Data() []float64
}

// CallbackFunc adapts a Finished handler to a Callback.
type CallbackFunc func(uTot, virialTot float64, forces []r3.Vec)

// Hooks implements Callback.
func (f CallbackFunc) Hooks() Hooks { return Hooks{Finished: f} }

// ForceCallback is a Callback that only asks for forces. Integrators
// register it when they read forces straight from the evaluator.
type ForceCallback struct{}

// Hooks implements Callback.
func (ForceCallback) Hooks() Hooks { return Hooks{TakesForces: true} }

func volume(b Box) float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Pressure computes the virial pressure P = N*T/V - W/(3V) at a fixed
// temperature.
type Pressure struct {
	box         Box
	temperature float64
	data        [1]float64
}

// NewPressure returns a pressure callback for box b at temperature T.
func NewPressure(b Box, temperature float64) *Pressure {
	return &Pressure{box: b, temperature: temperature}
}

// SetTemperature changes the temperature used for the ideal-gas term.
func (p *Pressure) SetTemperature(t float64) { p.temperature = t }

// Hooks implements Callback.
func (p *Pressure) Hooks() Hooks { return Hooks{Finished: p.finished} }

func (p *Pressure) finished(_, virialTot float64, _ []r3.Vec) {
	vol := volume(p.box)
	p.data[0] = float64(p.box.NumAtoms())*p.temperature/vol - virialTot/(3*vol)
}

// NumData implements DataSource.
func (p *Pressure) NumData() int { return len(p.data) }

// Data implements DataSource.
func (p *Pressure) Data() []float64 { return p.data[:] }

// HMA computes harmonically mapped averaging estimators for an atomic
// crystal. The lattice sites are the atom positions when the callback is
// created, so it must be built on the perfect lattice.
//
// Data holds, in order: the energy, the virial pressure, the mapped energy
// and the mapped pressure.
type HMA struct {
	box         Box
	temperature float64
	pHarm       float64
	lattice     []r3.Vec

	returnAnharmonic bool
	uLat, pLat       float64

	data [4]float64
}

// NewHMA returns an HMA callback at temperature T with harmonic pressure
// pHarm, recording the current positions as lattice sites.
func NewHMA(b Box, temperature, pHarm float64) *HMA {
	h := &HMA{box: b, temperature: temperature, pHarm: pHarm}
	h.lattice = append([]r3.Vec(nil), b.Positions()...)
	return h
}

// SetReturnAnharmonic switches the data to anharmonic contributions by
// subtracting the lattice energy and pressure and the harmonic terms. The
// lattice values are computed with ev, which must see the box in its
// lattice configuration.
func (h *HMA) SetReturnAnharmonic(on bool, ev interface {
	ComputeAll(callbacks ...Callback) (float64, float64)
}) {
	h.returnAnharmonic = on
	if !on {
		return
	}
	uLat, virialLat := ev.ComputeAll()
	h.uLat = uLat
	h.pLat = -virialLat / (3 * volume(h.box))
}

// Hooks implements Callback.
func (h *HMA) Hooks() Hooks { return Hooks{Finished: h.finished, TakesForces: true} }

func (h *HMA) finished(uTot, virialTot float64, forces []r3.Vec) {
	pos := h.box.Positions()
	n := len(pos)
	vol := volume(h.box)
	t := h.temperature

	fdotdr := 0.0
	if n > 0 {
		// drift of atom 0 stands in for the center-of-mass shift
		dr0 := r3.Sub(pos[0], h.lattice[0])
		for i := range pos {
			dr := h.box.NearestImage(r3.Sub(r3.Sub(pos[i], h.lattice[i]), dr0))
			fdotdr += r3.Dot(forces[i], dr)
		}
	}

	dof := 3 * float64(n-1)
	if n == 0 {
		dof = 0
	}
	uHarm := 0.5 * dof * t
	pVirial := -virialTot / (3 * vol)
	fV := 0.0
	if dof > 0 {
		fV = (h.pHarm/t - float64(n)/vol) / dof
	}

	if h.returnAnharmonic {
		h.data[0] = uTot - (uHarm + h.uLat)
		h.data[1] = float64(n)*t/vol + pVirial - (h.pLat + h.pHarm)
		h.data[2] = -h.uLat + uTot + 0.5*fdotdr
		h.data[3] = -h.pLat + pVirial + fV*fdotdr
		return
	}
	h.data[0] = uTot
	h.data[1] = float64(n)*t/vol + pVirial
	h.data[2] = uHarm + uTot + 0.5*fdotdr
	h.data[3] = h.pHarm + pVirial + fV*fdotdr
}

// NumData implements DataSource.
func (h *HMA) NumData() int { return len(h.data) }

// Data implements DataSource.
func (h *HMA) Data() []float64 { return h.data[:] }
