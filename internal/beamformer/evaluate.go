// SPDX-License-Identifier: MIT
package beamformer

import (
	"fmt"
	"runtime"

	"beamform/internal/csm"
	"beamform/internal/eigen"
	"beamform/internal/geometry"
	applog "beamform/internal/log"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var logger = applog.Component("beamformer")

// defaultChunk is the number of grid points per work unit.
const defaultChunk = 256

// Inputs carries the arrays a variant consumes. Which fields are required
// depends on the variant:
//
//	direct, formulation I-IV:  Distances, Wavenumber, CSM
//	direct, Specific:          SteeringVectors, CSM
//	eigen, formulation I-IV:   Distances, Wavenumber, Eigen
//	eigen, Specific:           SteeringVectors, Eigen
type Inputs struct {
	Distances *geometry.Distances
	// Wavenumber holds one value per frequency, magnitude in the imaginary
	// part.
	Wavenumber []complex128
	// SteeringVectors holds one NumGrid×NumMics matrix per frequency.
	SteeringVectors []*mat.CDense
	CSM             *csm.Matrix
	Eigen           *eigen.Decomposition
}

// shape is the validated size of a beamforming problem.
type shape struct {
	nFreqs, nGrid, nMics int
}

func (in *Inputs) validate(v Variant) (shape, error) {
	var s shape
	if v.Formulation.Predefined() {
		if in.Distances == nil {
			return s, fmt.Errorf("%w: %v needs grid distances", ErrMissingInput, v)
		}
		if err := in.Distances.Validate(); err != nil {
			return s, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		if len(in.Wavenumber) == 0 {
			return s, fmt.Errorf("%w: %v needs wavenumbers", ErrMissingInput, v)
		}
		s = shape{nFreqs: len(in.Wavenumber), nGrid: in.Distances.NumGrid(), nMics: in.Distances.NumMics()}
	} else {
		if len(in.SteeringVectors) == 0 {
			return s, fmt.Errorf("%w: %v needs steering vectors", ErrMissingInput, v)
		}
		r, c := in.SteeringVectors[0].Dims()
		s = shape{nFreqs: len(in.SteeringVectors), nGrid: r, nMics: c}
		for f, sv := range in.SteeringVectors {
			if rr, cc := sv.Dims(); rr != r || cc != c {
				return s, fmt.Errorf("%w: steering vectors of frequency %d are %d×%d, want %d×%d",
					ErrShapeMismatch, f, rr, cc, r, c)
			}
		}
	}
	if s.nMics == 0 || s.nGrid == 0 {
		return s, fmt.Errorf("%w: %d grid points, %d microphones", ErrShapeMismatch, s.nGrid, s.nMics)
	}

	if v.Eigen {
		if in.Eigen == nil {
			return s, fmt.Errorf("%w: %v needs an eigendecomposition", ErrMissingInput, v)
		}
		if in.Eigen.NumFreqs() != s.nFreqs {
			return s, fmt.Errorf("%w: eigendecomposition has %d frequencies, want %d",
				ErrShapeMismatch, in.Eigen.NumFreqs(), s.nFreqs)
		}
		if err := in.Eigen.Validate(s.nMics); err != nil {
			return s, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		return s, nil
	}

	if in.CSM == nil {
		return s, fmt.Errorf("%w: %v needs a cross-spectral matrix", ErrMissingInput, v)
	}
	if in.CSM.NumFreqs() != s.nFreqs || in.CSM.NumMics() != s.nMics {
		return s, fmt.Errorf("%w: CSM is %d×%d×%d, want %d×%d×%d", ErrShapeMismatch,
			in.CSM.NumFreqs(), in.CSM.NumMics(), in.CSM.NumMics(), s.nFreqs, s.nMics, s.nMics)
	}
	return s, nil
}

// Option configures Evaluate.
type Option func(*options)

type options struct {
	workers int
	chunk   int
}

// WithWorkers bounds the number of concurrent work units. The default is
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithChunkSize sets how many grid points one work unit evaluates.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunk = n
		}
	}
}

// Evaluate computes the beamforming map of variant v, indexed
// [frequency][grid point]. Every kernel result is multiplied by normFactor.
//
// The variant and all input shapes are checked before any computation
// starts; configuration and shape errors wrap ErrUnknownVariant,
// ErrMissingInput or ErrShapeMismatch.
func Evaluate(v Variant, normFactor float64, in Inputs, opts ...Option) ([][]float64, error) {
	kern, err := kernelFor(v)
	if err != nil {
		return nil, err
	}
	s, err := in.validate(v)
	if err != nil {
		return nil, err
	}

	o := options{workers: runtime.GOMAXPROCS(0), chunk: defaultChunk}
	for _, opt := range opts {
		opt(&o)
	}

	logger.Debugf("evaluating %v (%d frequencies, %d grid points, %d mics, %d workers)",
		v, s.nFreqs, s.nGrid, s.nMics, o.workers)

	out := make([][]float64, s.nFreqs)
	backing := make([]float64, s.nFreqs*s.nGrid)
	for f := range out {
		out[f] = backing[f*s.nGrid : (f+1)*s.nGrid : (f+1)*s.nGrid]
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	for f := range s.nFreqs {
		for lo := 0; lo < s.nGrid; lo += o.chunk {
			hi := min(lo+o.chunk, s.nGrid)
			g.Go(func() error {
				b := newBin(v, &in, f, s.nMics)
				row := out[f]
				for gi := lo; gi < hi; gi++ {
					row[gi] = kern(b, gi) * normFactor
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func newBin(v Variant, in *Inputs, f, nMics int) *bin {
	b := &bin{nMics: nMics}
	if v.Formulation.Predefined() {
		b.k = imag(in.Wavenumber[f])
		b.center = in.Distances.Center
		b.dists = in.Distances.Mics
		b.steer = make([]complex128, nMics)
	} else {
		b.vecs = in.SteeringVectors[f].RawCMatrix()
	}
	if v.Eigen {
		b.eigVal = in.Eigen.Values[f]
		b.eigVec = in.Eigen.Vectors[f].RawCMatrix()
	} else {
		b.csm = in.CSM.Slice(f).RawCMatrix()
	}
	return b
}
