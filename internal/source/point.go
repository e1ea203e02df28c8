// SPDX-License-Identifier: MIT

// Package source simulates the microphone signals of fixed and moving point
// sources in a free field.
package source

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"beamform/internal/geometry"
	applog "beamform/internal/log"

	"github.com/go-audio/audio"
)

var logger = applog.Component("source")

// ErrInvalidSource is returned by the constructors for incomplete or
// non-physical settings.
var ErrInvalidSource = errors.New("source: invalid configuration")

const (
	DefaultSoundSpeed = 343.0
	DefaultUpsampling = 16
)

// Generator produces multichannel sample blocks, one channel per microphone.
type Generator interface {
	NumChannels() int
	SampleRate() float64
	// Blocks yields interleaved buffers of num frames. The last buffer may
	// be shorter.
	Blocks(num int) iter.Seq[*audio.FloatBuffer]
}

// Option configures a point source.
type Option func(*settings)

type settings struct {
	c      float64
	startT float64
	start  float64
	up     int
	solver []SolverOption
}

// WithSoundSpeed sets the speed of sound in m/s.
func WithSoundSpeed(c float64) Option { return func(s *settings) { s.c = c } }

// WithSignalStart sets the time at which the source starts emitting.
func WithSignalStart(t float64) Option { return func(s *settings) { s.startT = t } }

// WithAcquisitionStart sets the time of the first microphone sample.
func WithAcquisitionStart(t float64) Option { return func(s *settings) { s.start = t } }

// WithUpsampling sets the factor the signal is upsampled by before the
// nearest-sample lookup.
func WithUpsampling(up int) Option { return func(s *settings) { s.up = up } }

// WithSolver passes options to the retarded time solver of a moving source.
func WithSolver(opts ...SolverOption) Option {
	return func(s *settings) { s.solver = append(s.solver, opts...) }
}

func newSettings(opts []Option) (settings, error) {
	s := settings{c: DefaultSoundSpeed, up: DefaultUpsampling}
	for _, opt := range opts {
		opt(&s)
	}
	if s.c <= 0 {
		return s, fmt.Errorf("%w: speed of sound %g", ErrInvalidSource, s.c)
	}
	if s.up < 1 {
		return s, fmt.Errorf("%w: upsampling factor %d", ErrInvalidSource, s.up)
	}
	return s, nil
}

func checkSignal(sig Signal, mics *geometry.MicGeom) error {
	if sig == nil {
		return fmt.Errorf("%w: no signal", ErrInvalidSource)
	}
	if sig.SampleRate() <= 0 {
		return fmt.Errorf("%w: sample rate %g", ErrInvalidSource, sig.SampleRate())
	}
	if mics == nil || mics.NumMics() == 0 {
		return fmt.Errorf("%w: no microphones", ErrInvalidSource)
	}
	return nil
}

// PointSource is a stationary source.
type PointSource struct {
	signal Signal
	loc    [3]float64
	mics   *geometry.MicGeom
	settings
}

// NewPointSource returns a source at loc emitting sig, observed by mics.
func NewPointSource(sig Signal, loc [3]float64, mics *geometry.MicGeom, opts ...Option) (*PointSource, error) {
	if err := checkSignal(sig, mics); err != nil {
		return nil, err
	}
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	return &PointSource{signal: sig, loc: loc, mics: mics, settings: s}, nil
}

func (p *PointSource) NumChannels() int    { return p.mics.NumMics() }
func (p *PointSource) SampleRate() float64 { return p.signal.SampleRate() }

// Blocks yields the source's microphone signals. Every microphone receives
// the signal sample nearest to its emission time, divided by its distance.
// Generation stops at the end of the signal or as soon as any microphone
// needs a sample past the end of the upsampled waveform; the samples produced
// until then are still yielded. Emission times before the start of the
// signal render as silence.
func (p *PointSource) Blocks(num int) iter.Seq[*audio.FloatBuffer] {
	return func(yield func(*audio.FloatBuffer) bool) {
		sig := Upsample(p.signal.Samples(), p.up)
		fs := p.signal.SampleRate()
		nMics := p.mics.NumMics()

		dists := make([]float64, nMics)
		ind := make([]float64, nMics)
		for m := range nMics {
			dists[m] = distance(p.loc, p.mics, m)
			ind[m] = (-dists[m]/p.c - p.startT + p.start) * fs
		}

		out := newBlockWriter(num, nMics, fs, yield)
		frame := make([]float64, nMics)
		for range p.signal.NumSamples() {
			for m := range nMics {
				v, ok := lookup(sig, ind[m], p.up)
				if !ok {
					logger.Debugf("fixed source exhausted after %d frames", out.frames)
					out.flush()
					return
				}
				frame[m] = v / dists[m]
				ind[m]++
			}
			if !out.write(frame) {
				return
			}
		}
		out.flush()
	}
}

// MovingPointSource follows a trajectory. Emission times come from a
// RetardedTimes solver whose receiving time starts at the acquisition start.
type MovingPointSource struct {
	signal Signal
	tr     Trajectory
	mics   *geometry.MicGeom
	settings
}

// NewMovingPointSource returns a source moving along tr.
func NewMovingPointSource(sig Signal, tr Trajectory, mics *geometry.MicGeom, opts ...Option) (*MovingPointSource, error) {
	if err := checkSignal(sig, mics); err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("%w: no trajectory", ErrInvalidSource)
	}
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	return &MovingPointSource{signal: sig, tr: tr, mics: mics, settings: s}, nil
}

func (p *MovingPointSource) NumChannels() int    { return p.mics.NumMics() }
func (p *MovingPointSource) SampleRate() float64 { return p.signal.SampleRate() }

// Solver returns a fresh emission time iterator configured like the one
// Blocks uses.
func (p *MovingPointSource) Solver(extra ...SolverOption) *RetardedTimes {
	fs := p.signal.SampleRate()
	opts := []SolverOption{WithTolerance(0.1 / float64(p.up) / fs)}
	opts = append(opts, p.solver...)
	opts = append(opts, extra...)
	return NewRetardedTimes(p.tr, p.mics.Positions, p.c, fs, p.start, opts...)
}

// Blocks yields the microphone signals with the same lookup and partial block
// rules as PointSource.Blocks. Generation stops when a microphone needs a
// sample past the end of the waveform; emission times before its start render
// as silence instead of stopping.
func (p *MovingPointSource) Blocks(num int) iter.Seq[*audio.FloatBuffer] {
	return func(yield func(*audio.FloatBuffer) bool) {
		sig := Upsample(p.signal.Samples(), p.up)
		fs := p.signal.SampleRate()
		nMics := p.mics.NumMics()

		rt := p.Solver(WithSampleLimit(p.signal.NumSamples()))
		out := newBlockWriter(num, nMics, fs, yield)
		frame := make([]float64, nMics)
		for rt.Next() {
			te, dists := rt.Times(), rt.Distances()
			for m := range nMics {
				v, ok := lookup(sig, (te[m]-p.startT)*fs, p.up)
				if !ok {
					logger.Debugf("moving source exhausted after %d frames", out.frames)
					out.flush()
					return
				}
				frame[m] = v / dists[m]
			}
			if !out.write(frame) {
				return
			}
		}
		if n := rt.NonConverged(); n > 0 {
			logger.Warnf("%d of %d samples kept an unconverged emission time", n, rt.Samples())
		}
		out.flush()
	}
}

// lookup returns the upsampled signal value nearest to the sample position
// ind (in samples at the signal rate). ok is false past the end of the signal.
// Negative positions precede the signal and read as 0 with ok true, so callers
// keep generating.
func lookup(sig []float64, ind float64, up int) (float64, bool) {
	i := int(0.5 + ind*float64(up))
	switch {
	case i < 0:
		return 0, true
	case i >= len(sig):
		return 0, false
	}
	return sig[i], true
}

func distance(loc [3]float64, mics *geometry.MicGeom, m int) float64 {
	var sum float64
	for i := range 3 {
		d := loc[i] - mics.Positions.At(i, m)
		sum += d * d
	}
	return math.Sqrt(sum)
}

// blockWriter collects frames into interleaved buffers of a fixed size.
type blockWriter struct {
	num, nMics int
	rate       int
	yield      func(*audio.FloatBuffer) bool
	buf        *audio.FloatBuffer
	fill       int
	frames     int
}

func newBlockWriter(num, nMics int, fs float64, yield func(*audio.FloatBuffer) bool) *blockWriter {
	if num < 1 {
		num = 1
	}
	return &blockWriter{num: num, nMics: nMics, rate: int(math.Round(fs)), yield: yield}
}

// write appends one frame and hands over a full buffer. It returns false
// when the consumer stopped.
func (w *blockWriter) write(frame []float64) bool {
	if w.buf == nil {
		w.buf = &audio.FloatBuffer{
			Format: &audio.Format{NumChannels: w.nMics, SampleRate: w.rate},
			Data:   make([]float64, w.num*w.nMics),
		}
	}
	copy(w.buf.Data[w.fill*w.nMics:], frame)
	w.fill++
	w.frames++
	if w.fill < w.num {
		return true
	}
	buf := w.buf
	w.buf, w.fill = nil, 0
	return w.yield(buf)
}

// flush yields a partially filled buffer, truncated to its frames.
func (w *blockWriter) flush() {
	if w.fill == 0 {
		return
	}
	w.buf.Data = w.buf.Data[:w.fill*w.nMics]
	buf := w.buf
	w.buf, w.fill = nil, 0
	w.yield(buf)
}
