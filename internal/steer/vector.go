// SPDX-License-Identifier: MIT
package steer

import (
	"fmt"
	"math"
)

// Phasor returns exp(-j·k·r), the free-field propagation phasor for a path of
// length r at wavenumber magnitude k. The phase argument follows the
// ReducedPrecisionPhase policy.
func Phasor(k, r float64) complex128 {
	s, c := math.Sincos(phaseArg(k, r))
	return complex(c, -s)
}

// Build writes the steering vector of a predefined formulation into dst, one
// entry per microphone, and returns Σ 1/r_m² (zero for formulations I and II,
// which do not need it). offset is subtracted from every distance inside the
// phase only; it models the array-center reference which cancels in any
// |h^H·v|² product.
//
// len(dst) must equal len(dists). Build panics for Specific, whose vectors
// are never built from geometry.
func Build(f Formulation, dst []complex128, k, offset float64, dists []float64) float64 {
	var invSq float64
	switch f {
	case Classic:
		for m, r := range dists {
			dst[m] = Phasor(k, r-offset)
		}
	case Inverse:
		for m, r := range dists {
			dst[m] = Phasor(k, r-offset) * complex(r, 0)
		}
	case TrueLevel, TrueLocation:
		for m, r := range dists {
			invSq += 1 / (r * r)
			dst[m] = Phasor(k, r-offset) / complex(r, 0)
		}
	default:
		panic(fmt.Sprintf("steer: cannot build %v steering vector from geometry", f))
	}
	return invSq
}

// Normalization returns the divisor applied to the reduced scalar h^H·C·h of
// formulation f. nMics is the number of microphones, r0 the grid point's
// distance to the array center and invSq the value returned by Build.
//
// Formulation IV is not squared; its units differ from III by design.
func Normalization(f Formulation, nMics int, r0, invSq float64) float64 {
	n := float64(nMics)
	switch f {
	case Classic:
		return n * n
	case Inverse:
		d := n * r0
		return d * d
	case TrueLevel:
		d := r0 * invSq
		return d * d
	case TrueLocation:
		return n * invSq
	default:
		return 1
	}
}

// Vector allocates and returns the normalized-phasor steering vector of a
// predefined formulation, mainly for callers outside the kernels.
func Vector(f Formulation, k, offset float64, dists []float64) []complex128 {
	dst := make([]complex128, len(dists))
	Build(f, dst, k, offset, dists)
	return dst
}
