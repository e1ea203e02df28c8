// SPDX-License-Identifier: MIT
package beamformer

import (
	"beamform/internal/steer"

	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// bin is the read-only view of one frequency bin plus a scratch steering
// vector. Each worker owns its bin, so kernels never share scratch space.
type bin struct {
	nMics int
	k     float64 // wavenumber magnitude

	center []float64        // per grid point distance to the array center
	dists  *mat.Dense       // NumGrid×NumMics
	vecs   cblas128.General // caller-supplied steering vectors, NumGrid×NumMics

	csm    cblas128.General // upper triangle is valid
	eigVal []float64
	eigVec cblas128.General // NumMics×NumKept

	steer []complex128
}

// build writes the formulation's steering vector for grid point g into
// b.steer and returns the normalization divisor. withOffset subtracts the
// grid point's array-center distance inside the phase.
func (b *bin) build(f steer.Formulation, g int, withOffset bool) float64 {
	var offset float64
	if withOffset {
		offset = b.center[g]
	}
	invSq := steer.Build(f, b.steer, b.k, offset, b.dists.RawRowView(g))
	return steer.Normalization(f, b.nMics, b.center[g], invSq)
}

// supplied returns the caller's steering vector of grid point g.
func (b *bin) supplied(g int) []complex128 {
	off := g * b.vecs.Stride
	return b.vecs.Data[off : off+b.nMics]
}

// --- reductions ---

// directOffDiag returns 2·Re(Σ_c h_c·Σ_{r<c} C[r,c]·h_r*), the strict upper
// triangle's share of h^H·C·h.
func directOffDiag(c cblas128.General, h []complex128) float64 {
	var sum float64
	for col := 1; col < len(h); col++ {
		var left complex128
		for row := range col {
			hr := h[row]
			left += c.Data[row*c.Stride+col] * complex(real(hr), -imag(hr))
		}
		p := left * h[col]
		sum += 2 * real(p)
	}
	return sum
}

// directDiag returns Σ_m C[m,m]·|h_m|².
func directDiag(c cblas128.General, h []complex128) float64 {
	var sum float64
	for m, hm := range h {
		sum += real(c.Data[m*c.Stride+m]) * (real(hm)*real(hm) + imag(hm)*imag(hm))
	}
	return sum
}

// eigenFull returns Σ_i λ_i·|Σ_m v_im*·h_m|².
func eigenFull(vals []float64, vecs cblas128.General, h []complex128) float64 {
	var sum float64
	for i, lambda := range vals {
		var proj complex128
		for m, hm := range h {
			v := vecs.Data[m*vecs.Stride+i]
			proj += complex(real(v), -imag(v)) * hm
		}
		sum += (real(proj)*real(proj) + imag(proj)*imag(proj)) * lambda
	}
	return sum
}

// eigenRemovedDiag returns Σ_i λ_i·(|Σ_m v_im*·h_m|² - Σ_m |v_im*·h_m|²).
func eigenRemovedDiag(vals []float64, vecs cblas128.General, h []complex128) float64 {
	var sum float64
	for i, lambda := range vals {
		var proj complex128
		var diag float64
		for m, hm := range h {
			v := vecs.Data[m*vecs.Stride+i]
			t := complex(real(v), -imag(v)) * hm
			proj += t
			diag += real(t)*real(t) + imag(t)*imag(t)
		}
		sum += (real(proj)*real(proj) + imag(proj)*imag(proj) - diag) * lambda
	}
	return sum
}

// --- direct CSM kernels ---
//
// None of the direct kernels subtract the array-center distance in the
// phase; it cancels in h^H·C·h.

func classicDirectFull(b *bin, g int) float64 {
	norm := b.build(steer.Classic, g, false)
	return (directDiag(b.csm, b.steer) + directOffDiag(b.csm, b.steer)) / norm
}

func classicDirectRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.Classic, g, false)
	return directOffDiag(b.csm, b.steer) / norm
}

func inverseDirectFull(b *bin, g int) float64 {
	norm := b.build(steer.Inverse, g, false)
	return (directDiag(b.csm, b.steer) + directOffDiag(b.csm, b.steer)) / norm
}

func inverseDirectRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.Inverse, g, false)
	return directOffDiag(b.csm, b.steer) / norm
}

func trueLevelDirectFull(b *bin, g int) float64 {
	norm := b.build(steer.TrueLevel, g, false)
	return (directDiag(b.csm, b.steer) + directOffDiag(b.csm, b.steer)) / norm
}

func trueLevelDirectRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.TrueLevel, g, false)
	return directOffDiag(b.csm, b.steer) / norm
}

func trueLocationDirectFull(b *bin, g int) float64 {
	norm := b.build(steer.TrueLocation, g, false)
	return (directDiag(b.csm, b.steer) + directOffDiag(b.csm, b.steer)) / norm
}

func trueLocationDirectRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.TrueLocation, g, false)
	return directOffDiag(b.csm, b.steer) / norm
}

func specificDirectFull(b *bin, g int) float64 {
	h := b.supplied(g)
	return directDiag(b.csm, h) + directOffDiag(b.csm, h)
}

func specificDirectRemovedDiag(b *bin, g int) float64 {
	return directOffDiag(b.csm, b.supplied(g))
}

// --- eigendecomposition kernels ---
//
// The full-CSM Classic kernel builds its phase from the raw mic distance;
// every other eigen kernel references the array center. The offset only
// shows up through the float32 rounding of the phase.

func classicEigenFull(b *bin, g int) float64 {
	norm := b.build(steer.Classic, g, false)
	return eigenFull(b.eigVal, b.eigVec, b.steer) / norm
}

func classicEigenRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.Classic, g, true)
	return eigenRemovedDiag(b.eigVal, b.eigVec, b.steer) / norm
}

func inverseEigenFull(b *bin, g int) float64 {
	norm := b.build(steer.Inverse, g, true)
	return eigenFull(b.eigVal, b.eigVec, b.steer) / norm
}

func inverseEigenRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.Inverse, g, true)
	return eigenRemovedDiag(b.eigVal, b.eigVec, b.steer) / norm
}

func trueLevelEigenFull(b *bin, g int) float64 {
	norm := b.build(steer.TrueLevel, g, true)
	return eigenFull(b.eigVal, b.eigVec, b.steer) / norm
}

func trueLevelEigenRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.TrueLevel, g, true)
	return eigenRemovedDiag(b.eigVal, b.eigVec, b.steer) / norm
}

func trueLocationEigenFull(b *bin, g int) float64 {
	norm := b.build(steer.TrueLocation, g, true)
	return eigenFull(b.eigVal, b.eigVec, b.steer) / norm
}

func trueLocationEigenRemovedDiag(b *bin, g int) float64 {
	norm := b.build(steer.TrueLocation, g, true)
	return eigenRemovedDiag(b.eigVal, b.eigVec, b.steer) / norm
}

func specificEigenFull(b *bin, g int) float64 {
	return eigenFull(b.eigVal, b.eigVec, b.supplied(g))
}

func specificEigenRemovedDiag(b *bin, g int) float64 {
	return eigenRemovedDiag(b.eigVal, b.eigVec, b.supplied(g))
}
