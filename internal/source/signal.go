// SPDX-License-Identifier: MIT
package source

import (
	"math"
	"math/rand/v2"

	"github.com/mjibson/go-dsp/fft"
)

// Signal is a finite, sampled source waveform.
type Signal interface {
	SampleRate() float64
	NumSamples() int
	Samples() []float64
}

// SineGenerator produces Amplitude·sin(2π·Freq·t + Phase).
type SineGenerator struct {
	Freq      float64
	Amplitude float64
	Phase     float64
	Rate      float64
	Length    int
}

func (s SineGenerator) SampleRate() float64 { return s.Rate }
func (s SineGenerator) NumSamples() int     { return s.Length }

// Samples returns the waveform.
func (s SineGenerator) Samples() []float64 {
	out := make([]float64, s.Length)
	w := 2 * math.Pi * s.Freq / s.Rate
	for i := range out {
		out[i] = s.Amplitude * math.Sin(w*float64(i)+s.Phase)
	}
	return out
}

// WhiteNoiseGenerator produces Gaussian white noise with the given RMS. The
// same Seed always yields the same samples.
type WhiteNoiseGenerator struct {
	RMS    float64
	Rate   float64
	Length int
	Seed   uint64
}

func (w WhiteNoiseGenerator) SampleRate() float64 { return w.Rate }
func (w WhiteNoiseGenerator) NumSamples() int     { return w.Length }

// Samples returns the waveform.
func (w WhiteNoiseGenerator) Samples() []float64 {
	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x5851f42d4c957f2d))
	out := make([]float64, w.Length)
	for i := range out {
		out[i] = rng.NormFloat64() * w.RMS
	}
	return out
}

// Upsample resamples x to up times its rate by zero padding its spectrum.
// The input is treated as one period of a band-limited signal, so every
// up-th output sample reproduces x.
func Upsample(x []float64, up int) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	if up <= 1 {
		out := make([]float64, n)
		copy(out, x)
		return out
	}

	spec := fft.FFTReal(x)
	m := n * up
	padded := make([]complex128, m)
	pos := (n + 1) / 2
	for i := range pos {
		padded[i] = spec[i]
	}
	for i := 1; i < pos; i++ {
		padded[m-i] = spec[n-i]
	}
	if n%2 == 0 {
		// Split the Nyquist bin between both halves.
		half := spec[n/2] / 2
		padded[n/2] = half
		padded[m-n/2] = half
	}

	res := fft.IFFT(padded)
	out := make([]float64, m)
	scale := float64(up)
	for i, v := range res {
		out[i] = real(v) * scale
	}
	return out
}
