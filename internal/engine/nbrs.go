package engine

import "gonum.org/v1/gonum/spatial/r3"

// nbrRows is a row-major neighbor matrix: row i holds count[i] partner
// indices and the matching box offsets in its first count[i] columns.
type nbrRows struct {
	cols    int
	idx     []int
	offsets []r3.Vec
	count   []int
}

func (r *nbrRows) reset(rows, cols int) {
	r.cols = cols
	if n := rows * cols; cap(r.idx) < n {
		r.idx = make([]int, n)
		r.offsets = make([]r3.Vec, n)
	} else {
		r.idx = r.idx[:n]
		r.offsets = r.offsets[:n]
	}
	if cap(r.count) < rows {
		r.count = make([]int, rows)
	}
	r.count = r.count[:rows]
	for i := range r.count {
		r.count[i] = 0
	}
}

func (r *nbrRows) full(i int) bool { return r.count[i] == r.cols }

func (r *nbrRows) push(i, j int, bo r3.Vec) {
	k := i*r.cols + r.count[i]
	r.idx[k] = j
	r.offsets[k] = bo
	r.count[i]++
}

// grow re-lays the matrix out with cols columns, keeping every row.
func (r *nbrRows) grow(cols int) {
	rows := len(r.count)
	idx := make([]int, rows*cols)
	offsets := make([]r3.Vec, rows*cols)
	for i, c := range r.count {
		copy(idx[i*cols:i*cols+c], r.idx[i*r.cols:i*r.cols+c])
		copy(offsets[i*cols:i*cols+c], r.offsets[i*r.cols:i*r.cols+c])
	}
	r.idx, r.offsets, r.cols = idx, offsets, cols
}

func (r *nbrRows) row(i int) ([]int, []r3.Vec) {
	lo := i * r.cols
	hi := lo + r.count[i]
	return r.idx[lo:hi], r.offsets[lo:hi]
}
