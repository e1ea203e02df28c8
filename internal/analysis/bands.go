// SPDX-License-Identifier: MIT

// Package analysis summarizes beamforming maps over frequency bands.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	applog "beamform/internal/log"
)

var logger = applog.Component("analysis")

// ErrNoFrequencies is returned when there is nothing to sum.
var ErrNoFrequencies = errors.New("analysis: no frequencies")

// FrequencyBand is a half-open frequency range [LowHz, HighHz).
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// Contains reports whether f lies in the band.
func (b FrequencyBand) Contains(f float64) bool {
	return f >= b.LowHz && f < b.HighHz
}

// FractionalOctave returns the 1/fraction octave band around centre, e.g.
// fraction 1 for octaves and 3 for third octaves. The edges are
// centre·2^(±1/(2·fraction)).
func FractionalOctave(centre float64, fraction int) FrequencyBand {
	edge := math.Exp2(1 / (2 * float64(fraction)))
	return FrequencyBand{
		Name:   fmt.Sprintf("1/%d octave at %g Hz", fraction, centre),
		LowHz:  centre / edge,
		HighHz: centre * edge,
	}
}

// BinRange returns the indices [lo, hi) of the ascending freqs inside band.
func BinRange(freqs []float64, band FrequencyBand) (lo, hi int) {
	lo = sort.SearchFloat64s(freqs, band.LowHz)
	hi = sort.SearchFloat64s(freqs, band.HighHz)
	return lo, hi
}

// Synthetic sums the map rows power[f] whose frequency falls in the
// 1/fraction octave band around centre. Fraction 0 selects the single bin
// nearest to centre. A band without bins gives an all zero map and a
// warning. freqs must be ascending with one entry per row of power.
func Synthetic(freqs []float64, power [][]float64, centre float64, fraction int) ([]float64, error) {
	if len(freqs) == 0 {
		return nil, ErrNoFrequencies
	}
	if len(freqs) != len(power) {
		return nil, fmt.Errorf("analysis: %d frequencies for %d map rows", len(freqs), len(power))
	}
	if fraction < 0 {
		return nil, fmt.Errorf("analysis: band fraction must not be negative, got %d", fraction)
	}

	out := make([]float64, len(power[0]))
	if fraction == 0 {
		copy(out, power[nearest(freqs, centre)])
		return out, nil
	}

	band := FractionalOctave(centre, fraction)
	lo, hi := BinRange(freqs, band)
	if lo == hi {
		logger.Warnf("%s [%.1f, %.1f) Hz contains no frequency bins", band.Name, band.LowHz, band.HighHz)
		return out, nil
	}
	for _, row := range power[lo:hi] {
		if len(row) != len(out) {
			return nil, fmt.Errorf("analysis: map rows differ in length (%d, %d)", len(row), len(out))
		}
		for g, v := range row {
			out[g] += v
		}
	}
	return out, nil
}

func nearest(freqs []float64, f float64) int {
	i := sort.SearchFloat64s(freqs, f)
	switch {
	case i == 0:
		return 0
	case i == len(freqs):
		return i - 1
	case f-freqs[i-1] <= freqs[i]-f:
		return i - 1
	}
	return i
}
