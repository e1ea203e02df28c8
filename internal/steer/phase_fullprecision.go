// SPDX-License-Identifier: MIT

//go:build fullprecision

package steer

// ReducedPrecisionPhase reports the numeric policy compiled into Phasor.
// This build keeps the phase argument in float64.
const ReducedPrecisionPhase = false

func phaseArg(k, r float64) float64 {
	return k * r
}
