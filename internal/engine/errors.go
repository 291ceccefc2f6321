package engine

import "errors"

// Configuration errors returned by Init. They indicate a setup that cannot
// produce correct pair sums and are not meant to be recovered from.
var (
	// ErrNoPotentials indicates Init on a table with no pair potentials.
	ErrNoPotentials = errors.New("engine: no pair potentials registered")

	// ErrCellRangeTooSmall indicates cellLength*cellRange < interaction range.
	ErrCellRangeTooSmall = errors.New("engine: cell range too small for interaction range")

	// ErrBoxTooSmall indicates an interaction range beyond half a box edge.
	ErrBoxTooSmall = errors.New("engine: interaction range exceeds half the box")

	// ErrNeighborRange indicates a neighbor range not beyond the interaction range.
	ErrNeighborRange = errors.New("engine: neighbor range must exceed the interaction range")
)
