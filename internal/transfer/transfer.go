// SPDX-License-Identifier: MIT

// Package transfer evaluates free-field transfer functions between grid
// points and microphones, referenced to the array center.
package transfer

import (
	"errors"
	"fmt"

	"beamform/internal/geometry"
	"beamform/internal/steer"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned for inconsistent distance arrays.
var ErrShapeMismatch = errors.New("transfer: shape mismatch")

// Evaluate returns one NumGrid×NumMics matrix per wavenumber holding
//
//	exp(-j·k·(r_m - r0)) · r0 / r_m
//
// for every grid point and microphone. The result can be passed unchanged as
// beamformer steering vectors.
func Evaluate(d *geometry.Distances, wavenumber []complex128) ([]*mat.CDense, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	nGrid, nMics := d.NumGrid(), d.NumMics()

	out := make([]*mat.CDense, len(wavenumber))
	for f, kc := range wavenumber {
		k := imag(kc)
		tf := mat.NewCDense(nGrid, nMics, nil)
		raw := tf.RawCMatrix()
		for g := range nGrid {
			r0 := d.Center[g]
			row := raw.Data[g*raw.Stride : g*raw.Stride+nMics]
			for m, r := range d.Mics.RawRowView(g) {
				row[m] = steer.Phasor(k, r-r0) * complex(r0/r, 0)
			}
		}
		out[f] = tf
	}
	return out, nil
}
