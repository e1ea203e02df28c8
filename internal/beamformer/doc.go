// SPDX-License-Identifier: MIT

/*
Package beamformer maps a cross-spectral matrix (or its eigendecomposition)
and a set of steering vectors to a power estimate per frequency and grid
point.

# Kernels

Every kernel reduces h^H·C·h for one grid point. The CSM is Hermitian, so

	h^H·C·h = h^H·C_D·h + 2·Re(h^H·C_U·h)

where C_D is the diagonal and C_U the strict upper triangle. The lower
triangle is never read, which is why csm.Matrix.Accumulate only writes the
upper one.

The eigenvalue kernels use C = Σ λ_i v_i v_i^H and evaluate
Σ λ_i |v_i^H·h|² without rebuilding C. Their diagonal-removed form subtracts
Σ_m |v_im*·h_m|² per eigenpair, the only way to drop the CSM diagonal without
the full matrix.

A Variant selects one of 20 kernels:

	{direct CSM, eigendecomposition}
	× {Classic, Inverse, TrueLevel, TrueLocation, Specific}
	× {full CSM, diagonal removed}

Formulations I-IV build the steering vector from geometry and divide by a
formulation-specific normalization; Specific takes the caller's vectors
verbatim. All kernels finally multiply by the caller's normFactor, which
captures signal energy lost to diagonal removal and any algorithm constant.

# Concurrency

Evaluate splits the work into (frequency, grid range) units and runs them on
an errgroup with a bounded number of goroutines. Units write disjoint output
slots; nothing is locked.
*/
package beamformer
