// SPDX-License-Identifier: MIT

/*
Package spectra turns multichannel time data into a cross-spectral matrix.

Incoming frames are cut into blocks of BlockSize samples that overlap by the
configured fraction. Each block is windowed, transformed with a real FFT per
channel and folded into a csm.Matrix. CSM returns the ensemble average,
scaled to one-sided power, with the lower triangle completed.

A Processor is not safe for concurrent use.
*/
package spectra

import (
	"errors"
	"fmt"
	"math"

	"beamform/internal/csm"
	applog "beamform/internal/log"
	"beamform/pkg/bitint"

	"github.com/go-audio/audio"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

var logger = applog.Component("spectra")

var (
	// ErrNoBlocks is returned by CSM before a full block was processed.
	ErrNoBlocks = errors.New("spectra: no complete block")
	// ErrChannels is returned for buffers whose channel count differs from
	// the processor's.
	ErrChannels = errors.New("spectra: channel count mismatch")
)

// Option configures a Processor.
type Option func(*Processor)

// WithWindow selects the block window. The default is Hann.
func WithWindow(w WindowFunc) Option { return func(p *Processor) { p.windowType = w } }

// WithOverlap sets the fraction in [0, 1) by which consecutive blocks
// overlap. The default is 0.5.
func WithOverlap(f float64) Option { return func(p *Processor) { p.overlap = f } }

// WithBand restricts the matrix to FFT bins whose centre frequency lies in
// [lo, hi] Hz.
func WithBand(lo, hi float64) Option {
	return func(p *Processor) { p.bandLo, p.bandHi = lo, hi }
}

// Processor accumulates the cross-spectral matrix of a stream.
type Processor struct {
	blockSize  int
	sampleRate float64
	nMics      int
	windowType WindowFunc
	overlap    float64
	bandLo     float64
	bandHi     float64

	fft     *fourier.FFT
	window  []float64
	step    int
	binLo   int
	binHi   int // exclusive
	pending [][]float64
	input   []float64
	coeffs  []complex128
	spec    *mat.CDense
	acc     *csm.Matrix
	blocks  int
}

// New returns a Processor for nMics channels. blockSize must be a power of
// two.
func New(nMics, blockSize int, sampleRate float64, opts ...Option) (*Processor, error) {
	if !bitint.IsPowerOfTwo(blockSize) {
		return nil, fmt.Errorf("block size must be a power of 2, got %d (try %d)", blockSize, bitint.NextPowerOfTwo(blockSize))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if nMics < 1 {
		return nil, fmt.Errorf("need at least one channel, got %d", nMics)
	}

	p := &Processor{
		blockSize:  blockSize,
		sampleRate: sampleRate,
		nMics:      nMics,
		windowType: Hann,
		overlap:    0.5,
		bandLo:     0,
		bandHi:     math.Inf(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlap < 0 || p.overlap >= 1 {
		return nil, fmt.Errorf("overlap must be in [0, 1), got %g", p.overlap)
	}

	p.step = max(1, int(math.Round(float64(blockSize)*(1-p.overlap))))
	res := sampleRate / float64(blockSize)
	p.binLo = max(0, int(math.Ceil(p.bandLo/res)))
	p.binHi = blockSize/2 + 1
	if !math.IsInf(p.bandHi, 1) {
		p.binHi = min(p.binHi, int(math.Floor(p.bandHi/res))+1)
	}
	if p.binHi <= p.binLo {
		return nil, fmt.Errorf("band [%g, %g] Hz contains no FFT bin", p.bandLo, p.bandHi)
	}

	p.fft = fourier.NewFFT(blockSize)
	p.window = coefficients(blockSize, p.windowType)
	p.pending = make([][]float64, nMics)
	p.input = make([]float64, blockSize)
	p.coeffs = make([]complex128, blockSize/2+1)
	p.spec = mat.NewCDense(p.binHi-p.binLo, nMics, nil)
	p.acc = csm.New(p.binHi-p.binLo, nMics)

	logger.Debugf("block size %d, step %d, window %v, bins %d..%d", blockSize, p.step, p.windowType, p.binLo, p.binHi-1)
	return p, nil
}

// Write appends interleaved frames and processes every block that became
// complete.
func (p *Processor) Write(buf *audio.FloatBuffer) error {
	if buf == nil || buf.Format == nil {
		return fmt.Errorf("%w: buffer without format", ErrChannels)
	}
	if buf.Format.NumChannels != p.nMics {
		return fmt.Errorf("%w: got %d, want %d", ErrChannels, buf.Format.NumChannels, p.nMics)
	}
	frames := len(buf.Data) / p.nMics
	for m := range p.nMics {
		ch := p.pending[m]
		for i := range frames {
			ch = append(ch, buf.Data[i*p.nMics+m])
		}
		p.pending[m] = ch
	}

	for len(p.pending[0]) >= p.blockSize {
		if err := p.processBlock(); err != nil {
			return err
		}
		for m := range p.pending {
			p.pending[m] = p.pending[m][p.step:]
		}
	}
	return nil
}

func (p *Processor) processBlock() error {
	raw := p.spec.RawCMatrix()
	for m, ch := range p.pending {
		for i := range p.blockSize {
			p.input[i] = ch[i] * p.window[i]
		}
		p.fft.Coefficients(p.coeffs, p.input)
		for f := p.binLo; f < p.binHi; f++ {
			raw.Data[(f-p.binLo)*raw.Stride+m] = p.coeffs[f]
		}
	}
	if err := p.acc.Accumulate(p.spec); err != nil {
		return err
	}
	p.blocks++
	return nil
}

// Blocks returns how many blocks have been accumulated.
func (p *Processor) Blocks() int { return p.blocks }

// Frequencies returns the centre frequency of every bin in the matrix.
func (p *Processor) Frequencies() []float64 {
	res := p.sampleRate / float64(p.blockSize)
	out := make([]float64, p.binHi-p.binLo)
	for i := range out {
		out[i] = float64(p.binLo+i) * res
	}
	return out
}

// FrequencyIndex returns the matrix index of the bin nearest to f.
func (p *Processor) FrequencyIndex(f float64) int {
	i := int(math.Round(f*float64(p.blockSize)/p.sampleRate)) - p.binLo
	return min(max(i, 0), p.binHi-p.binLo-1)
}

// CSM returns the averaged, completed cross-spectral matrix. The processor
// keeps accumulating; later calls include later blocks.
func (p *Processor) CSM() (*csm.Matrix, error) {
	if p.blocks == 0 {
		return nil, ErrNoBlocks
	}
	slices := make([]*mat.CDense, p.acc.NumFreqs())
	for f := range slices {
		slices[f] = mat.NewCDense(p.nMics, p.nMics, nil)
		slices[f].Copy(p.acc.Slice(f))
	}
	out, err := csm.FromSlices(slices)
	if err != nil {
		return nil, err
	}
	n := float64(p.blockSize)
	out.Scale(2 / (n * n * float64(p.blocks)))
	out.Complete()
	return out, nil
}
