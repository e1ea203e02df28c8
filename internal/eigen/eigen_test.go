// SPDX-License-Identifier: MIT
package eigen

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"beamform/internal/csm"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomCSM(t *testing.T, seed uint64, nFreqs, nMics, ensembles int) *csm.Matrix {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	m := csm.New(nFreqs, nMics)
	for range ensembles {
		spec := mat.NewCDense(nFreqs, nMics, nil)
		for f := range nFreqs {
			for i := range nMics {
				spec.Set(f, i, complex(rng.NormFloat64(), rng.NormFloat64()))
			}
		}
		require.NoError(t, m.Accumulate(spec))
	}
	return m
}

// sourceVector is a plane-wave-like array response for frequency f.
func sourceVector(f, nMics int) []complex128 {
	a := make([]complex128, nMics)
	for i := range a {
		a[i] = cmplx.Rect(1/(1+0.1*float64(i)), -2*math.Pi*float64((f+1)*i)/7)
	}
	return a
}

// nearRankOneCSM accumulates one dominant source plus a weak noise floor
// that grows with the microphone index, like a measured single source.
func nearRankOneCSM(t *testing.T, seed uint64, nFreqs, nMics, ensembles int, noise float64) *csm.Matrix {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	m := csm.New(nFreqs, nMics)
	for range ensembles {
		spec := mat.NewCDense(nFreqs, nMics, nil)
		for f := range nFreqs {
			s := complex(rng.NormFloat64(), rng.NormFloat64())
			for i, a := range sourceVector(f, nMics) {
				n := complex(rng.NormFloat64(), rng.NormFloat64()) * complex(noise*float64(i+1), 0)
				spec.Set(f, i, s*a+n)
			}
		}
		require.NoError(t, m.Accumulate(spec))
	}
	m.Scale(1 / float64(ensembles))
	return m
}

func maxAbsC(m mat.CMatrix) float64 {
	r, c := m.Dims()
	var mx float64
	for i := range r {
		for j := range c {
			mx = max(mx, cmplx.Abs(m.At(i, j)))
		}
	}
	return mx
}

func requireCloseC(t *testing.T, want, got mat.CMatrix, tol float64) {
	t.Helper()
	r, c := want.Dims()
	for i := range r {
		for j := range c {
			require.InDelta(t, real(want.At(i, j)), real(got.At(i, j)), tol, "real (%d,%d)", i, j)
			require.InDelta(t, imag(want.At(i, j)), imag(got.At(i, j)), tol, "imag (%d,%d)", i, j)
		}
	}
}

func TestDecomposeReconstructsFullRank(t *testing.T) {
	m := randomCSM(t, 11, 3, 5, 12)
	d, err := Decompose(m, All())
	require.NoError(t, err)
	require.NoError(t, d.Validate(5))

	for f := range 3 {
		vals := d.Values[f]
		require.Len(t, vals, 5)
		for i := 1; i < len(vals); i++ {
			require.LessOrEqual(t, vals[i-1], vals[i])
		}
		require.GreaterOrEqual(t, vals[0], -1e-9)
		requireCloseC(t, m.Full(f), d.Reconstruct(f), 1e-9)
	}
}

func TestDecomposeDegenerate(t *testing.T) {
	// A single ensemble gives a rank one matrix: one positive eigenvalue and
	// a four-fold zero.
	m := randomCSM(t, 21, 2, 5, 1)
	d, err := Decompose(m, All())
	require.NoError(t, err)

	for f := range 2 {
		vec := d.Vectors[f]
		// Columns must be orthonormal even inside the degenerate subspace.
		for a := range 5 {
			for b := range 5 {
				var dot complex128
				for i := range 5 {
					dot += cmplx.Conj(vec.At(i, a)) * vec.At(i, b)
				}
				want := 0.0
				if a == b {
					want = 1
				}
				require.InDelta(t, want, real(dot), 1e-9)
				require.InDelta(t, 0, imag(dot), 1e-9)
			}
		}
		requireCloseC(t, m.Full(f), d.Reconstruct(f), 1e-9)
	}
}

func TestDecomposeNearRankOne(t *testing.T) {
	for _, tc := range []struct {
		name      string
		ensembles int
		noise     float64
	}{
		{"graded noise floor", 32, 1e-3},
		{"tiny noise floor", 32, 1e-7},
		{"rank deficient", 3, 1e-7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			const nFreqs, nMics = 4, 9
			m := nearRankOneCSM(t, 41, nFreqs, nMics, tc.ensembles, tc.noise)
			d, err := Decompose(m, All())
			require.NoError(t, err)
			top, err := Decompose(m, Largest(1))
			require.NoError(t, err)

			for f := range nFreqs {
				full := m.Full(f)
				scale := maxAbsC(full)
				requireCloseC(t, full, d.Reconstruct(f), 1e-9*scale)

				vals := d.Values[f]
				for i := 1; i < len(vals); i++ {
					require.LessOrEqual(t, vals[i-1], vals[i])
				}
				// The dominant eigenvalue carries almost the whole trace.
				var trace float64
				for i := range nMics {
					trace += real(full.At(i, i))
				}
				require.InDelta(t, trace, vals[nMics-1], 1e-3*trace)
				require.Equal(t, vals[nMics-1], top.Values[f][0])

				// Its vector is the source direction.
				a := sourceVector(f, nMics)
				var dot complex128
				var norm float64
				for i, ai := range a {
					dot += cmplx.Conj(top.Vectors[f].At(i, 0)) * ai
					norm += real(ai)*real(ai) + imag(ai)*imag(ai)
				}
				require.InDelta(t, 1, real(dot*cmplx.Conj(dot))/norm, 1e-3)
			}
		})
	}
}

func TestDecomposeLargest(t *testing.T) {
	m := randomCSM(t, 31, 1, 4, 8)
	all, err := Decompose(m, All())
	require.NoError(t, err)
	top, err := Decompose(m, Largest(2))
	require.NoError(t, err)

	require.Equal(t, all.Values[0][2:], top.Values[0])
	_, c := top.Vectors[0].Dims()
	require.Equal(t, 2, c)

	_, err = Decompose(m, Range{Lo: 3, Hi: 3})
	require.True(t, errors.Is(err, ErrEmptySelection))
}

func TestValidate(t *testing.T) {
	d := &Decomposition{
		Values:  [][]float64{{1, 2}},
		Vectors: []*mat.CDense{mat.NewCDense(3, 1, nil)},
	}
	require.True(t, errors.Is(d.Validate(3), ErrShapeMismatch))

	var none *Decomposition
	require.Error(t, none.Validate(3))
}
