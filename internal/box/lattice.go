package box

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var fccBasis = [4]r3.Vec{
	{X: 0, Y: 0, Z: 0},
	{X: 0, Y: 0.5, Z: 0.5},
	{X: 0.5, Y: 0, Z: 0.5},
	{X: 0.5, Y: 0.5, Z: 0},
}

// FCCSites returns n face-centered-cubic lattice sites filling the box.
// The lattice uses the smallest cubic cell count that holds n sites, so
// non-magic n leaves trailing sites empty.
func FCCSites(size r3.Vec, n int) []r3.Vec {
	cells := int(math.Ceil(math.Cbrt(float64(n) / 4)))
	if cells < 1 {
		cells = 1
	}
	a := r3.Vec{X: size.X / float64(cells), Y: size.Y / float64(cells), Z: size.Z / float64(cells)}
	// shift so sites sit off the cell faces
	shift := r3.Vec{X: 0.25*a.X - size.X/2, Y: 0.25*a.Y - size.Y/2, Z: 0.25*a.Z - size.Z/2}

	sites := make([]r3.Vec, 0, n)
	for ix := 0; ix < cells; ix++ {
		for iy := 0; iy < cells; iy++ {
			for iz := 0; iz < cells; iz++ {
				for _, bv := range fccBasis {
					if len(sites) == n {
						return sites
					}
					sites = append(sites, r3.Vec{
						X: (float64(ix)+bv.X)*a.X + shift.X,
						Y: (float64(iy)+bv.Y)*a.Y + shift.Y,
						Z: (float64(iz)+bv.Z)*a.Z + shift.Z,
					})
				}
			}
		}
	}
	return sites
}

// InitFCC places every molecule's template on an FCC site.
func (b *Box) InitFCC() {
	sites := FCCSites(b.size, len(b.molecules))
	for iMolecule, m := range b.molecules {
		sp, _ := b.species.Get(m.species)
		for a := 0; a <= m.last-m.first; a++ {
			b.positions[m.first+a] = b.Fold(r3.Add(sites[iMolecule], sp.Positions[a]))
		}
	}
}
