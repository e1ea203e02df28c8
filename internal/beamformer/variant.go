// SPDX-License-Identifier: MIT
package beamformer

import (
	"errors"
	"fmt"

	"beamform/internal/steer"
)

var (
	// ErrUnknownVariant is a configuration error: no kernel exists for the
	// requested combination.
	ErrUnknownVariant = errors.New("beamformer: unknown variant")
	// ErrMissingInput is returned when the variant needs an input that was
	// not supplied.
	ErrMissingInput = errors.New("beamformer: missing input")
	// ErrShapeMismatch is returned when input dimensions disagree.
	ErrShapeMismatch = errors.New("beamformer: shape mismatch")
)

// Variant selects a kernel.
type Variant struct {
	Eigen       bool              // Use the eigendecomposition instead of the CSM.
	Formulation steer.Formulation // Steering vector convention.
	RemovedDiag bool              // Exclude the CSM diagonal.
}

// String returns e.g. "eigen/true-level/removed-diag".
func (v Variant) String() string {
	src, diag := "direct", "full"
	if v.Eigen {
		src = "eigen"
	}
	if v.RemovedDiag {
		diag = "removed-diag"
	}
	return fmt.Sprintf("%s/%s/%s", src, v.Formulation, diag)
}

// Variants returns every supported variant.
func Variants() []Variant {
	var out []Variant
	for _, eig := range []bool{false, true} {
		for _, f := range steer.Formulations() {
			for _, diag := range []bool{false, true} {
				out = append(out, Variant{Eigen: eig, Formulation: f, RemovedDiag: diag})
			}
		}
	}
	return out
}

// kernel evaluates one grid point of the frequency bin b, before the
// caller's normalization factor is applied.
type kernel func(b *bin, g int) float64

// kernelFor selects the kernel of v.
func kernelFor(v Variant) (kernel, error) {
	if v.Eigen {
		switch v.Formulation {
		case steer.Classic:
			if v.RemovedDiag {
				return classicEigenRemovedDiag, nil
			}
			return classicEigenFull, nil
		case steer.Inverse:
			if v.RemovedDiag {
				return inverseEigenRemovedDiag, nil
			}
			return inverseEigenFull, nil
		case steer.TrueLevel:
			if v.RemovedDiag {
				return trueLevelEigenRemovedDiag, nil
			}
			return trueLevelEigenFull, nil
		case steer.TrueLocation:
			if v.RemovedDiag {
				return trueLocationEigenRemovedDiag, nil
			}
			return trueLocationEigenFull, nil
		case steer.Specific:
			if v.RemovedDiag {
				return specificEigenRemovedDiag, nil
			}
			return specificEigenFull, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnknownVariant, v)
	}

	switch v.Formulation {
	case steer.Classic:
		if v.RemovedDiag {
			return classicDirectRemovedDiag, nil
		}
		return classicDirectFull, nil
	case steer.Inverse:
		if v.RemovedDiag {
			return inverseDirectRemovedDiag, nil
		}
		return inverseDirectFull, nil
	case steer.TrueLevel:
		if v.RemovedDiag {
			return trueLevelDirectRemovedDiag, nil
		}
		return trueLevelDirectFull, nil
	case steer.TrueLocation:
		if v.RemovedDiag {
			return trueLocationDirectRemovedDiag, nil
		}
		return trueLocationDirectFull, nil
	case steer.Specific:
		if v.RemovedDiag {
			return specificDirectRemovedDiag, nil
		}
		return specificDirectFull, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownVariant, v)
}
