// Package engine evaluates potential energy, virial and forces for a
// periodic many-body configuration.
//
// Three strategies share one implementation, [Master], and differ only in
// how candidate pairs are enumerated:
//
//   - [New]: brute force over every pair with minimum-image separations
//   - [NewCell]: a periodic cell grid, visiting only neighboring cells
//   - [NewList]: Verlet neighbor lists built at the interaction range plus
//     a skin, reused until some atom has moved half the skin
//
// All three apply the same exclusion rule and strict cutoff, so they agree
// to rounding on any configuration.
//
// # Monte Carlo bookkeeping
//
// Every full computation refreshes a per-atom energy cache holding half of
// each pair energy the atom takes part in. Single-atom trials go through a
// pending delta buffer:
//
//	pm.ResetAtomDU()
//	uOld := pm.ComputeOne(i, rOld, false)
//	// move atom i, then pm.UpdateAtom(i)
//	uNew := pm.ComputeOne(i, rNew, true)
//	if accepted {
//	    pm.ProcessAtomU(1)
//	} else {
//	    pm.ResetAtomDU()
//	}
//
// # Thread Safety
//
// None of the evaluators are safe for concurrent use.
package engine
