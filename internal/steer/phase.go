// SPDX-License-Identifier: MIT

//go:build !fullprecision

package steer

// ReducedPrecisionPhase reports the numeric policy compiled into Phasor.
//
// The phase argument k·r is rounded to float32 before cos/sin are evaluated.
// Measured accuracy loss in the resulting maps is negligible while the speed
// gain is not. Build with -tags fullprecision to keep the argument in float64.
const ReducedPrecisionPhase = true

func phaseArg(k, r float64) float64 {
	return float64(float32(k * r))
}
