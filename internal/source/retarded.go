// SPDX-License-Identifier: MIT
package source

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxIterations caps the Newton-Raphson steps per sample.
	DefaultMaxIterations = 100
)

// SolverOption configures a RetardedTimes iterator.
type SolverOption func(*RetardedTimes)

// WithMaxIterations sets the Newton-Raphson iteration cap per sample.
func WithMaxIterations(n int) SolverOption {
	return func(r *RetardedTimes) {
		if n > 0 {
			r.maxIter = n
		}
	}
}

// WithTolerance sets the convergence threshold on max|eps| in seconds.
func WithTolerance(tol float64) SolverOption {
	return func(r *RetardedTimes) {
		if tol > 0 {
			r.tol = tol
		}
	}
}

// WithNonConvergence registers fn, called for every sample whose solution
// did not reach the tolerance. receiving is the sample's receiving time and
// residual the last max|eps|.
func WithNonConvergence(fn func(receiving, residual float64)) SolverOption {
	return func(r *RetardedTimes) { r.onNonConverged = fn }
}

// WithSampleLimit stops the iterator after n samples. Zero means no limit.
func WithSampleLimit(n int) SolverOption {
	return func(r *RetardedTimes) {
		if n >= 0 {
			r.limit = n
		}
	}
}

// RetardedTimes solves, sample by sample, for the time at which a moving
// source emitted the sound each microphone receives.
//
// The receiving time starts at the given start time and advances by one
// sample period per Next call. For every microphone the emission time te
// satisfies te + |x(te) - m|/c = t and is found by Newton-Raphson seeded with
// te = t. A sample whose solution does not converge within the iteration cap
// keeps the last estimate; it is counted and reported, never fatal.
//
// The sequence is lazy and cannot be restarted. A RetardedTimes is not safe
// for concurrent use; run one per source.
type RetardedTimes struct {
	tr   Trajectory
	mics *mat.Dense // 3×NumMics
	c    float64
	dt   float64

	maxIter        int
	tol            float64
	limit          int
	onNonConverged func(receiving, residual float64)

	t         float64 // receiving time of the next sample
	receiving float64
	te        []float64
	r         []float64

	samples      int
	iterations   int
	residual     float64
	nonConverged int
}

// NewRetardedTimes returns an iterator over emission times for trajectory tr
// observed by the microphones mics (3×NumMics), speed of sound c and
// sampleRate, with the first receiving time start. The default tolerance is
// one tenth of a period at sampleRate; MovingPointSource.Solver tightens it to
// one tenth of an upsampled period.
func NewRetardedTimes(tr Trajectory, mics *mat.Dense, c, sampleRate, start float64, opts ...SolverOption) *RetardedTimes {
	_, n := mics.Dims()
	r := &RetardedTimes{
		tr:      tr,
		mics:    mics,
		c:       c,
		dt:      1 / sampleRate,
		maxIter: DefaultMaxIterations,
		tol:     0.1 / sampleRate,
		t:       start,
		te:      make([]float64, n),
		r:       make([]float64, n),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next solves the next sample. It returns false once the sample limit is
// reached.
func (r *RetardedTimes) Next() bool {
	if r.limit > 0 && r.samples >= r.limit {
		return false
	}
	t := r.t
	for m := range r.te {
		r.te[m] = t
	}

	residual := math.Inf(1)
	iter := 0
	for residual > r.tol && iter < r.maxIter {
		residual = 0
		for m := range r.te {
			eps := r.step(m, t)
			r.te[m] -= eps
			residual = max(residual, math.Abs(eps))
		}
		iter++
	}

	r.receiving = t
	r.iterations = iter
	r.residual = residual
	r.samples++
	r.t += r.dt

	if !r.Converged() {
		r.nonConverged++
		if r.nonConverged == 1 {
			logger.Warnf("retarded time did not converge at t=%g after %d iterations (residual %g); using best estimate",
				t, iter, residual)
		}
		if r.onNonConverged != nil {
			r.onNonConverged(t, residual)
		}
	}
	return true
}

// step evaluates the Newton-Raphson update of microphone m and records the
// source distance it used.
func (r *RetardedTimes) step(m int, t float64) float64 {
	te := r.te[m]
	loc := r.tr.Location(te)
	vel := r.tr.Velocity(te)

	var d [3]float64
	var dist float64
	for i := range 3 {
		d[i] = loc[i] - r.mics.At(i, m)
		dist += d[i] * d[i]
	}
	dist = math.Sqrt(dist)
	r.r[m] = dist

	var mach float64
	if dist > 0 {
		mach = (vel[0]*d[0] + vel[1]*d[1] + vel[2]*d[2]) / (dist * r.c)
	}
	return (te + dist/r.c - t) / (1 + mach)
}

// Times returns the emission time per microphone of the current sample. The
// slice is reused by the next call to Next.
func (r *RetardedTimes) Times() []float64 { return r.te }

// Distances returns the source-microphone distances of the last iteration of
// the current sample. The slice is reused by the next call to Next.
func (r *RetardedTimes) Distances() []float64 { return r.r }

// Receiving returns the receiving time of the current sample.
func (r *RetardedTimes) Receiving() float64 { return r.receiving }

// Iterations returns the Newton-Raphson steps spent on the current sample.
func (r *RetardedTimes) Iterations() int { return r.iterations }

// Converged reports whether the current sample met the tolerance.
func (r *RetardedTimes) Converged() bool { return r.residual <= r.tol }

// NonConverged returns how many samples so far kept an unconverged estimate.
func (r *RetardedTimes) NonConverged() int { return r.nonConverged }

// Samples returns how many samples have been solved.
func (r *RetardedTimes) Samples() int { return r.samples }
