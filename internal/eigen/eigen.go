// SPDX-License-Identifier: MIT
/*
Package eigen computes truncated spectral decompositions of a cross-spectral
matrix for the eigenvalue variants of the beamformer.

gonum only factorizes real symmetric matrices, so every Hermitian slice
H = A + jB is embedded as the real symmetric matrix

	S = | A  -B |
	    | B   A |

Each eigenvalue of H appears twice in S, and every eigenvector [x; y] of S
maps to the complex eigenvector x + jy of H. The doubled pairs are folded back
with a complex Gram-Schmidt pass, largest eigenvalues first, which also
separates degenerate eigenvalues.
*/
package eigen

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"sort"

	"beamform/internal/csm"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrFactorization is returned when the symmetric eigensolver fails.
	ErrFactorization = errors.New("eigen: factorization failed")
	// ErrEmptySelection is returned when a Range keeps no eigenpairs.
	ErrEmptySelection = errors.New("eigen: empty eigenvalue selection")
	// ErrShapeMismatch is returned for inconsistent decomposition arrays.
	ErrShapeMismatch = errors.New("eigen: shape mismatch")
)

const (
	// acceptTol is the Gram-Schmidt residual that marks a candidate as a
	// new complex direction while walking the eigenvalues down.
	acceptTol = 0.5
	// residualTol is the smallest residual the greedy fill accepts.
	residualTol = 1e-7
)

// Range selects eigenpairs by position in ascending eigenvalue order as the
// half-open interval [Lo, Hi). Negative positions count from the end.
type Range struct {
	Lo, Hi int
}

// All keeps every eigenpair.
func All() Range { return Range{Lo: 0, Hi: math.MaxInt} }

// Largest keeps the k largest eigenpairs.
func Largest(k int) Range { return Range{Lo: -k, Hi: math.MaxInt} }

func (r Range) resolve(n int) (lo, hi int, err error) {
	lo, hi = r.Lo, r.Hi
	if lo < 0 {
		lo += n
	}
	if hi < 0 {
		hi += n
	}
	lo = max(0, min(lo, n))
	hi = max(0, min(hi, n))
	if lo >= hi {
		return 0, 0, fmt.Errorf("%w: [%d, %d) of %d", ErrEmptySelection, r.Lo, r.Hi, n)
	}
	return lo, hi, nil
}

// Decomposition is a truncated eigendecomposition, one entry per frequency.
type Decomposition struct {
	// Values[f] holds the kept eigenvalues in ascending order.
	Values [][]float64
	// Vectors[f] is NumMics×len(Values[f]); column i belongs to Values[f][i].
	Vectors []*mat.CDense
}

// NumFreqs returns the number of frequency bins.
func (d *Decomposition) NumFreqs() int { return len(d.Values) }

// Validate checks that values and vectors agree per frequency and that all
// vectors have nMics rows.
func (d *Decomposition) Validate(nMics int) error {
	if d == nil {
		return fmt.Errorf("%w: decomposition not set", ErrShapeMismatch)
	}
	if len(d.Values) != len(d.Vectors) {
		return fmt.Errorf("%w: %d value sets for %d vector sets", ErrShapeMismatch, len(d.Values), len(d.Vectors))
	}
	for f, vec := range d.Vectors {
		r, c := vec.Dims()
		if r != nMics || c != len(d.Values[f]) {
			return fmt.Errorf("%w: frequency %d has %d×%d vectors for %d values and %d mics",
				ErrShapeMismatch, f, r, c, len(d.Values[f]), nMics)
		}
	}
	return nil
}

// Decompose factorizes every frequency slice of m and keeps the eigenpairs
// selected by keep. Only the upper triangle of m is read.
func Decompose(m *csm.Matrix, keep Range) (*Decomposition, error) {
	nFreqs, nMics := m.NumFreqs(), m.NumMics()
	lo, hi, err := keep.resolve(nMics)
	if err != nil {
		return nil, err
	}

	d := &Decomposition{
		Values:  make([][]float64, nFreqs),
		Vectors: make([]*mat.CDense, nFreqs),
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for f := range nFreqs {
		g.Go(func() error {
			vals, vecs, err := hermitian(m.Slice(f), nMics)
			if err != nil {
				return fmt.Errorf("frequency %d: %w", f, err)
			}
			d.Values[f] = vals[lo:hi]
			d.Vectors[f] = vecs.Slice(0, nMics, lo, hi).(*mat.CDense)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// hermitian returns all eigenpairs of the Hermitian matrix whose upper
// triangle is stored in upper, eigenvalues ascending.
//
// The real eigenvectors are folded back from the largest eigenvalue down, so
// the dominant directions are fixed before the noise floor is reached. A
// candidate is accepted when at least acceptTol of it survives the
// projection onto the directions found so far; the second copy of a pair
// leaves almost nothing and is skipped. If the noise floor is too
// ill-conditioned to yield every direction that way, the remaining ones are
// taken greedily by largest residual. Eigenvalues are the Rayleigh quotients
// of the final vectors.
func hermitian(upper *mat.CDense, n int) ([]float64, *mat.CDense, error) {
	full := mat.NewCDense(n, n, nil)
	s := mat.NewSymDense(2*n, nil)
	for c := range n {
		for r := 0; r <= c; r++ {
			v := upper.At(r, c)
			a, b := real(v), imag(v)
			if r == c {
				b = 0
			}
			full.Set(r, c, complex(a, b))
			full.Set(c, r, complex(a, -b))
			// A block (both copies) and the antisymmetric B blocks.
			s.SetSym(r, c, a)
			s.SetSym(n+r, n+c, a)
			s.SetSym(r, n+c, -b)
			s.SetSym(c, n+r, b)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(s, true); !ok {
		return nil, nil, ErrFactorization
	}
	var realVecs mat.Dense
	es.VectorsTo(&realVecs)

	gs := newGramSchmidt(n)
	cand := make([]complex128, n)
	load := func(j int) {
		for i := range n {
			cand[i] = complex(realVecs.At(i, j), realVecs.At(n+i, j))
		}
	}
	for j := 2*n - 1; j >= 0 && len(gs.vecs) < n; j-- {
		load(j)
		if gs.residual(cand) >= acceptTol {
			gs.accept(cand)
		}
	}
	for len(gs.vecs) < n {
		best, bestNorm := -1, residualTol
		for j := range 2 * n {
			load(j)
			if norm := gs.residual(cand); norm > bestNorm {
				best, bestNorm = j, norm
			}
		}
		if best < 0 {
			return nil, nil, fmt.Errorf("%w: recovered %d of %d eigenpairs", ErrFactorization, len(gs.vecs), n)
		}
		load(best)
		gs.residual(cand)
		gs.accept(cand)
	}

	// Rayleigh quotients, then ascending order.
	vals := make([]float64, n)
	order := make([]int, n)
	hv := make([]complex128, n)
	for k := range n {
		col := gs.vecs[k]
		for r := range n {
			var sum complex128
			for c := range n {
				sum += full.At(r, c) * col[c]
			}
			hv[r] = sum
		}
		var q complex128
		for i := range n {
			q += cmplx.Conj(col[i]) * hv[i]
		}
		vals[k] = real(q)
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] < vals[order[b]] })

	sorted := make([]float64, n)
	vecs := mat.NewCDense(n, n, nil)
	for col, k := range order {
		sorted[col] = vals[k]
		for i, v := range gs.vecs[k] {
			vecs.Set(i, col, v)
		}
	}
	return sorted, vecs, nil
}

// gramSchmidt holds the orthonormal complex directions accepted so far.
type gramSchmidt struct {
	vecs [][]complex128
}

func newGramSchmidt(n int) *gramSchmidt {
	return &gramSchmidt{vecs: make([][]complex128, 0, n)}
}

// residual removes the accepted directions from v in place (twice, for
// numerical orthogonality) and returns the norm of what is left.
func (g *gramSchmidt) residual(v []complex128) float64 {
	for range 2 {
		for _, q := range g.vecs {
			var proj complex128
			for i, qi := range q {
				proj += cmplx.Conj(qi) * v[i]
			}
			for i, qi := range q {
				v[i] -= proj * qi
			}
		}
	}
	var norm float64
	for _, x := range v {
		norm += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(norm)
}

// accept normalizes a residual returned by residual and stores it.
func (g *gramSchmidt) accept(v []complex128) {
	var norm float64
	for _, x := range v {
		norm += real(x)*real(x) + imag(x)*imag(x)
	}
	scale := complex(1/math.Sqrt(norm), 0)
	q := make([]complex128, len(v))
	for i, x := range v {
		q[i] = x * scale
	}
	g.vecs = append(g.vecs, q)
}

// Reconstruct rebuilds the (possibly truncated) Hermitian matrix of
// frequency f as Σ λ_i v_i v_i^H.
func (d *Decomposition) Reconstruct(f int) *mat.CDense {
	vec := d.Vectors[f]
	n, _ := vec.Dims()
	out := mat.NewCDense(n, n, nil)
	for i, lambda := range d.Values[f] {
		for r := range n {
			for c := range n {
				out.Set(r, c, out.At(r, c)+complex(lambda, 0)*vec.At(r, i)*cmplx.Conj(vec.At(c, i)))
			}
		}
	}
	return out
}
