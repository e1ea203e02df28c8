// SPDX-License-Identifier: MIT
package transfer

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"beamform/internal/geometry"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEvaluate(t *testing.T) {
	d := &geometry.Distances{
		Center: []float64{1, 2},
		Mics:   mat.NewDense(2, 3, []float64{1, 1.5, 0.5, 2, 4, 1}),
	}
	k := geometry.Wavenumbers([]float64{0, 700}, 343)

	tf, err := Evaluate(d, k)
	require.NoError(t, err)
	require.Len(t, tf, 2)

	// Zero frequency leaves only the amplitude ratio.
	require.Equal(t, complex(1, 0), tf[0].At(0, 0))
	require.InDelta(t, 1/1.5, real(tf[0].At(0, 1)), 1e-15)
	require.InDelta(t, 2.0, real(tf[0].At(1, 2)), 1e-15)

	for g := range 2 {
		for m := range 3 {
			r0, r := d.Center[g], d.Mics.At(g, m)
			v := tf[1].At(g, m)
			require.InDelta(t, r0/r, cmplx.Abs(v), 1e-12)
			want := -imag(k[1]) * (r - r0)
			require.InDelta(t, 0, math.Remainder(cmplx.Phase(v)-want, 2*math.Pi), 1e-5)
		}
	}
	// A microphone at the reference distance has unit transfer.
	require.InDelta(t, 1, real(tf[1].At(1, 0)), 1e-15)
	require.InDelta(t, 0, imag(tf[1].At(1, 0)), 1e-15)
}

func TestEvaluateShape(t *testing.T) {
	d := &geometry.Distances{Center: []float64{1}, Mics: mat.NewDense(2, 2, nil)}
	_, err := Evaluate(d, geometry.Wavenumbers([]float64{100}, 343))
	require.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = Evaluate(nil, nil)
	require.True(t, errors.Is(err, ErrShapeMismatch))
}
