// SPDX-License-Identifier: MIT
/*
Package csm holds the Cross-Spectral Matrix of a microphone array: one
NumMics×NumMics Hermitian matrix per frequency bin.

Accumulation only ever touches the upper triangle (row <= column). Averaging
over ensembles and completing the lower triangle by conjugate transposition
are separate steps, so a matrix handed straight from Accumulate to the
beamformer kernels is valid: the kernels never read the lower triangle.

Thread Safety:
  - Accumulate splits the frequency bins of one ensemble across workers;
    each worker owns disjoint slices, no locking is involved.
  - Concurrent Accumulate calls on the same Matrix are not safe.
*/
package csm

import (
	"errors"
	"fmt"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when a spectrum does not match the matrix's
// frequency or microphone count.
var ErrShapeMismatch = errors.New("csm: shape mismatch")

// Matrix is a cross-spectral matrix indexed [frequency][mic, mic].
type Matrix struct {
	numFreqs int
	numMics  int
	slices   []*mat.CDense
	workers  int
}

// New allocates a zero-filled matrix for nFreqs frequency bins and nMics
// microphones.
func New(nFreqs, nMics int) *Matrix {
	if nFreqs <= 0 || nMics <= 0 {
		panic(fmt.Sprintf("csm: invalid dimensions %d×%d", nFreqs, nMics))
	}
	slices := make([]*mat.CDense, nFreqs)
	for f := range slices {
		slices[f] = mat.NewCDense(nMics, nMics, nil)
	}
	return &Matrix{
		numFreqs: nFreqs,
		numMics:  nMics,
		slices:   slices,
		workers:  runtime.GOMAXPROCS(0),
	}
}

// FromSlices wraps existing per-frequency matrices. Every slice must be
// square and all slices must share the same size.
func FromSlices(slices []*mat.CDense) (*Matrix, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: no frequency slices", ErrShapeMismatch)
	}
	n, c := slices[0].Dims()
	for f, s := range slices {
		r, cc := s.Dims()
		if r != n || cc != c || r != cc {
			return nil, fmt.Errorf("%w: slice %d is %d×%d, want %d×%d", ErrShapeMismatch, f, r, cc, n, n)
		}
	}
	return &Matrix{
		numFreqs: len(slices),
		numMics:  n,
		slices:   slices,
		workers:  runtime.GOMAXPROCS(0),
	}, nil
}

// SetWorkers limits the number of goroutines Accumulate may use. Values
// below one select sequential accumulation.
func (m *Matrix) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	m.workers = n
}

// NumFreqs returns the number of frequency bins.
func (m *Matrix) NumFreqs() int { return m.numFreqs }

// NumMics returns the number of microphones.
func (m *Matrix) NumMics() int { return m.numMics }

// Slice returns the matrix of frequency bin f. The returned matrix is shared
// with m, not copied.
func (m *Matrix) Slice(f int) *mat.CDense { return m.slices[f] }

// Accumulate folds one ensemble's spectrum into the upper triangle of every
// frequency slice: csm[f][r,c] += conj(spec[f,c]) · spec[f,r] for r <= c.
//
// spec must be NumFreqs×NumMics. The check happens before any element is
// written.
func (m *Matrix) Accumulate(spec mat.CMatrix) error {
	rows, cols := spec.Dims()
	if rows != m.numFreqs || cols != m.numMics {
		return fmt.Errorf("%w: spectrum is %d×%d, matrix expects %d×%d",
			ErrShapeMismatch, rows, cols, m.numFreqs, m.numMics)
	}

	workers := m.workers
	if workers <= 1 || m.numFreqs == 1 {
		for f := range m.numFreqs {
			m.accumulateBin(f, spec)
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	chunk := (m.numFreqs + workers - 1) / workers
	for lo := 0; lo < m.numFreqs; lo += chunk {
		hi := min(lo+chunk, m.numFreqs)
		g.Go(func() error {
			for f := lo; f < hi; f++ {
				m.accumulateBin(f, spec)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Matrix) accumulateBin(f int, spec mat.CMatrix) {
	raw := m.slices[f].RawCMatrix()
	for c := range m.numMics {
		conjC := cmplx.Conj(spec.At(f, c))
		for r := 0; r <= c; r++ {
			raw.Data[r*raw.Stride+c] += conjC * spec.At(f, r)
		}
	}
}

// Scale multiplies every upper-triangle element by s. Calling Scale(1/n)
// after n ensembles yields the averaged matrix.
func (m *Matrix) Scale(s float64) {
	cs := complex(s, 0)
	for _, slice := range m.slices {
		raw := slice.RawCMatrix()
		for c := range m.numMics {
			for r := 0; r <= c; r++ {
				raw.Data[r*raw.Stride+c] *= cs
			}
		}
	}
}

// Complete fills the strict lower triangle of every slice with the conjugate
// transpose of the upper triangle, turning each slice into a full Hermitian
// matrix. The diagonal's imaginary part is cleared.
func (m *Matrix) Complete() {
	for _, slice := range m.slices {
		raw := slice.RawCMatrix()
		for c := range m.numMics {
			d := raw.Data[c*raw.Stride+c]
			raw.Data[c*raw.Stride+c] = complex(real(d), 0)
			for r := 0; r < c; r++ {
				raw.Data[c*raw.Stride+r] = cmplx.Conj(raw.Data[r*raw.Stride+c])
			}
		}
	}
}

// Full returns a Hermitian-completed copy of frequency slice f built from its
// upper triangle, leaving m untouched.
func (m *Matrix) Full(f int) *mat.CDense {
	src := m.slices[f].RawCMatrix()
	n := m.numMics
	dst := mat.NewCDense(n, n, nil)
	for c := range n {
		for r := 0; r <= c; r++ {
			v := src.Data[r*src.Stride+c]
			dst.Set(r, c, v)
			if r != c {
				dst.Set(c, r, cmplx.Conj(v))
			}
		}
	}
	return dst
}
