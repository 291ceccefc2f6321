package integrators

import "errors"

var (
	// ErrTooFewAtoms indicates a box with no atoms to move.
	ErrTooFewAtoms = errors.New("integrators: box has no atoms")

	// ErrUnstable indicates a non-finite energy after a step, usually a
	// time step too large for the potential.
	ErrUnstable = errors.New("integrators: energy is not finite")

	// ErrNoMoves indicates a Monte Carlo integrator without moves.
	ErrNoMoves = errors.New("integrators: no Monte Carlo moves registered")
)
