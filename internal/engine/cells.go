package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// chains is an arena of singly linked per-cell atom lists. Atom indices
// are the links; -1 terminates a chain and marks an empty cell. Atoms are
// appended at the tail, so a freshly assigned chain runs in index order.
type chains struct {
	head []int
	tail []int
	next []int
	cell []int
}

func (c *chains) reset(numCells, numAtoms int) {
	c.head = fill(c.head, numCells)
	c.tail = fill(c.tail, numCells)
	c.next = fill(c.next, numAtoms)
	c.cell = fill(c.cell, numAtoms)
}

func fill(s []int, n int) []int {
	if cap(s) < n {
		s = make([]int, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = -1
	}
	return s
}

func (c *chains) push(iAtom, iCell int) {
	c.next[iAtom] = -1
	if t := c.tail[iCell]; t >= 0 {
		c.next[t] = iAtom
	} else {
		c.head[iCell] = iAtom
	}
	c.tail[iCell] = iAtom
	c.cell[iAtom] = iCell
}

func (c *chains) unlink(iAtom int) {
	iCell := c.cell[iAtom]
	prev := -1
	if c.head[iCell] == iAtom {
		c.head[iCell] = c.next[iAtom]
	} else {
		for k := c.head[iCell]; k >= 0; k = c.next[k] {
			if c.next[k] == iAtom {
				c.next[k] = c.next[iAtom]
				prev = k
				break
			}
		}
	}
	if c.tail[iCell] == iAtom {
		c.tail[iCell] = prev
	}
	c.next[iAtom] = -1
	c.cell[iAtom] = -1
}

// relabel gives atom from the index to, keeping its place in its chain.
func (c *chains) relabel(from, to int) {
	iCell := c.cell[from]
	if c.head[iCell] == from {
		c.head[iCell] = to
	} else {
		for k := c.head[iCell]; k >= 0; k = c.next[k] {
			if c.next[k] == from {
				c.next[k] = to
				break
			}
		}
	}
	if c.tail[iCell] == from {
		c.tail[iCell] = to
	}
	c.next[to] = c.next[from]
	c.cell[to] = iCell
}

// cellGrid partitions the box into cells and pads it with cellRange layers
// of ghost cells on every face. A ghost cell is an image of a real cell;
// wrapMap names that real cell and boxOffsets the displacement of the
// image, so an offset walk from any real cell never leaves the padded
// lattice.
type cellGrid struct {
	box       Box
	cellRange int

	numCells [3]int
	ext      [3]int
	jump     [3]int
	size     [3]float64
	cellSize [3]float64

	interior   []int
	wrapMap    []int
	boxOffsets []r3.Vec
	upOffsets  []int
	allOffsets []int

	chains chains
	ready  bool
}

func newCellGrid(b Box, cellRange int) *cellGrid {
	if cellRange < 1 {
		cellRange = 1
	}
	return &cellGrid{box: b, cellRange: cellRange}
}

// build lays out the padded lattice for pairs up to rng apart and assigns
// every atom to a cell.
func (g *cellGrid) build(rng float64) error {
	if rng <= 0 {
		return ErrNoPotentials
	}
	s := g.box.Size()
	g.size = [3]float64{s.X, s.Y, s.Z}
	cr := g.cellRange
	for a := range g.size {
		n := int(math.Floor(g.size[a] * float64(cr) / rng))
		if n < 1 {
			n = 1
		}
		g.numCells[a] = n
		g.cellSize[a] = g.size[a] / float64(n)
		if g.cellSize[a]*float64(cr) < rng {
			return fmt.Errorf("%w: %d cells of %g for range %g", ErrCellRangeTooSmall, cr, g.cellSize[a], rng)
		}
		g.ext[a] = n + 2*cr
	}
	g.jump = [3]int{g.ext[1] * g.ext[2], g.ext[2], 1}

	total := g.ext[0] * g.ext[1] * g.ext[2]
	g.wrapMap = make([]int, total)
	g.boxOffsets = make([]r3.Vec, total)
	g.interior = g.interior[:0]
	for ex := 0; ex < g.ext[0]; ex++ {
		rx, ix := wrapIndex(ex-cr, g.numCells[0])
		for ey := 0; ey < g.ext[1]; ey++ {
			ry, iy := wrapIndex(ey-cr, g.numCells[1])
			for ez := 0; ez < g.ext[2]; ez++ {
				rz, iz := wrapIndex(ez-cr, g.numCells[2])
				idx := ex*g.jump[0] + ey*g.jump[1] + ez
				g.wrapMap[idx] = (rx+cr)*g.jump[0] + (ry+cr)*g.jump[1] + rz + cr
				g.boxOffsets[idx] = r3.Vec{
					X: float64(ix) * g.size[0],
					Y: float64(iy) * g.size[1],
					Z: float64(iz) * g.size[2],
				}
				if ix == 0 && iy == 0 && iz == 0 {
					g.interior = append(g.interior, idx)
				}
			}
		}
	}

	g.upOffsets = g.upOffsets[:0]
	g.allOffsets = g.allOffsets[:0]
	rng2 := rng * rng
	for dx := -cr; dx <= cr; dx++ {
		for dy := -cr; dy <= cr; dy++ {
			for dz := -cr; dz <= cr; dz++ {
				if g.gap2(dx, dy, dz) >= rng2 {
					continue
				}
				off := dx*g.jump[0] + dy*g.jump[1] + dz
				g.allOffsets = append(g.allOffsets, off)
				if off > 0 {
					g.upOffsets = append(g.upOffsets, off)
				}
			}
		}
	}
	g.assign()
	g.ready = true
	return nil
}

// wrapIndex returns the real cell of a padded coordinate and its image.
func wrapIndex(e, n int) (cell, image int) {
	image = e / n
	if e < 0 && e%n != 0 {
		image--
	}
	return e - image*n, image
}

// gap2 is the squared minimum distance between points in two cells a cell
// offset apart.
func (g *cellGrid) gap2(dx, dy, dz int) float64 {
	d2 := 0.0
	for a, d := range [3]int{dx, dy, dz} {
		if d < 0 {
			d = -d
		}
		if d > 1 {
			gap := float64(d-1) * g.cellSize[a]
			d2 += gap * gap
		}
	}
	return d2
}

// assign rebuilds every chain from the current positions.
func (g *cellGrid) assign() {
	pos := g.box.Positions()
	g.chains.reset(len(g.wrapMap), len(pos))
	for i, r := range pos {
		g.chains.push(i, g.cellFor(r))
	}
}

// cellFor returns the padded index of the real cell holding r.
func (g *cellGrid) cellFor(r r3.Vec) int {
	f := g.box.Fold(r)
	idx := 0
	for a, x := range [3]float64{f.X, f.Y, f.Z} {
		k := int((x + 0.5*g.size[a]) / g.cellSize[a])
		if k >= g.numCells[a] {
			k = g.numCells[a] - 1
		} else if k < 0 {
			k = 0
		}
		idx += (k + g.cellRange) * g.jump[a]
	}
	return idx
}

// move relinks atom iAtom if its position left its cell.
func (g *cellGrid) move(iAtom int) bool {
	c := g.cellFor(g.box.Positions()[iAtom])
	if c == g.chains.cell[iAtom] {
		return false
	}
	g.chains.unlink(iAtom)
	g.chains.push(iAtom, c)
	return true
}

func (g *cellGrid) add(iAtom int) {
	g.chains.next = append(g.chains.next, -1)
	g.chains.cell = append(g.chains.cell, -1)
	g.chains.push(iAtom, g.cellFor(g.box.Positions()[iAtom]))
}

// remove drops atom iAtom and relabels the last atom to iAtom, matching
// the box's swap-with-last removal.
func (g *cellGrid) remove(iAtom int) {
	last := len(g.chains.next) - 1
	g.chains.unlink(iAtom)
	if iAtom != last {
		g.chains.relabel(last, iAtom)
	}
	g.chains.next = g.chains.next[:last]
	g.chains.cell = g.chains.cell[:last]
}

// eachPair visits every pair of atoms in the same or a neighboring cell
// once. dr points from i to the image of j and bo is the image offset.
func (g *cellGrid) eachPair(visit func(i, j int, dr, bo r3.Vec)) {
	pos := g.box.Positions()
	head, next := g.chains.head, g.chains.next
	for _, c := range g.interior {
		for i := head[c]; i >= 0; i = next[i] {
			ri := pos[i]
			for j := next[i]; j >= 0; j = next[j] {
				visit(i, j, r3.Sub(pos[j], ri), r3.Vec{})
			}
			for _, off := range g.upOffsets {
				nc := c + off
				bo := g.boxOffsets[nc]
				for j := head[g.wrapMap[nc]]; j >= 0; j = next[j] {
					if j == i {
						continue
					}
					visit(i, j, r3.Add(r3.Sub(pos[j], ri), bo), bo)
				}
			}
		}
	}
}

// eachPartner visits every atom near ri other than iAtom. ri need not be
// the stored position of iAtom.
func (g *cellGrid) eachPartner(iAtom int, ri r3.Vec, visit func(j int, dr r3.Vec)) {
	pos := g.box.Positions()
	head, next := g.chains.head, g.chains.next
	f := g.box.Fold(ri)
	c := g.cellFor(f)
	for _, off := range g.allOffsets {
		nc := c + off
		bo := g.boxOffsets[nc]
		for j := head[g.wrapMap[nc]]; j >= 0; j = next[j] {
			if j == iAtom {
				continue
			}
			visit(j, r3.Add(r3.Sub(pos[j], f), bo))
		}
	}
}
