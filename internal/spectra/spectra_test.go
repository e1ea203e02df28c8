// SPDX-License-Identifier: MIT
package spectra

import (
	"errors"
	"testing"

	"beamform/pkg/utils"

	"github.com/stretchr/testify/require"
)

func TestSinePower(t *testing.T) {
	p, err := New(2, 256, 1024, WithWindow(Rectangular), WithOverlap(0))
	require.NoError(t, err)

	x := utils.GenerateSineWave(2048, 2, 1024, 64)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 0.5 * v
	}
	require.NoError(t, p.Write(utils.Interleave(1024, x, y)))
	require.Equal(t, 8, p.Blocks())

	c, err := p.CSM()
	require.NoError(t, err)
	f := p.FrequencyIndex(64)
	require.Equal(t, 64.0, p.Frequencies()[f])

	s := c.Slice(f)
	require.InDelta(t, 2, real(s.At(0, 0)), 1e-9)
	require.InDelta(t, 0.5, real(s.At(1, 1)), 1e-9)
	require.InDelta(t, 1, real(s.At(0, 1)), 1e-9)
	require.InDelta(t, 1, real(s.At(1, 0)), 1e-9)
	require.InDelta(t, 0, imag(s.At(0, 1)), 1e-9)

	// Off-bin energy vanishes for a bin-centred sine.
	require.InDelta(t, 0, real(c.Slice(f+3).At(0, 0)), 1e-9)
}

func TestHarmonicPowers(t *testing.T) {
	// 7040 Hz over 256 samples puts 440, 880 and 1320 Hz on bin centres.
	const fs = 7040
	p, err := New(1, 256, fs, WithWindow(Rectangular), WithOverlap(0))
	require.NoError(t, err)
	require.NoError(t, p.Write(utils.Interleave(fs, utils.GenerateComplexWave(2048, fs))))

	c, err := p.CSM()
	require.NoError(t, err)
	var total float64
	for _, tc := range []struct {
		freq, amplitude float64
	}{
		{440, 0.5},
		{880, 0.3},
		{1320, 0.2},
	} {
		f := p.FrequencyIndex(tc.freq)
		require.Equal(t, tc.freq, p.Frequencies()[f])
		got := real(c.Slice(f).At(0, 0))
		require.InDelta(t, tc.amplitude*tc.amplitude/2, got, 1e-9, "%v Hz", tc.freq)
		total += got
	}

	var all float64
	for f := range c.NumFreqs() {
		all += real(c.Slice(f).At(0, 0))
	}
	require.InDelta(t, total, all, 1e-9)
}

func TestWriteChunking(t *testing.T) {
	x := utils.GenerateSineWave(1024, 1, 1024, 37)
	y := utils.GenerateSineWave(1024, 0.3, 1024, 91)

	whole, err := New(2, 256, 1024)
	require.NoError(t, err)
	require.NoError(t, whole.Write(utils.Interleave(1024, x, y)))
	// 50% overlap: (1024-256)/128 + 1 blocks.
	require.Equal(t, 7, whole.Blocks())

	chunked, err := New(2, 256, 1024)
	require.NoError(t, err)
	for lo := 0; lo < len(x); lo += 100 {
		hi := min(lo+100, len(x))
		require.NoError(t, chunked.Write(utils.Interleave(1024, x[lo:hi], y[lo:hi])))
	}
	require.Equal(t, whole.Blocks(), chunked.Blocks())

	a, err := whole.CSM()
	require.NoError(t, err)
	b, err := chunked.CSM()
	require.NoError(t, err)
	for f := range a.NumFreqs() {
		for r := range 2 {
			for c := range 2 {
				require.InDelta(t, real(a.Slice(f).At(r, c)), real(b.Slice(f).At(r, c)), 1e-12)
				require.InDelta(t, imag(a.Slice(f).At(r, c)), imag(b.Slice(f).At(r, c)), 1e-12)
			}
		}
	}
}

func TestBand(t *testing.T) {
	p, err := New(1, 256, 1024, WithBand(100, 200))
	require.NoError(t, err)
	freqs := p.Frequencies()
	require.Len(t, freqs, 26)
	require.Equal(t, 100.0, freqs[0])
	require.Equal(t, 200.0, freqs[len(freqs)-1])
	require.Equal(t, 0, p.FrequencyIndex(10))
	require.Equal(t, 25, p.FrequencyIndex(5000))

	_, err = New(1, 256, 1024, WithBand(101, 102))
	require.Error(t, err)
}

func TestWindowNormalization(t *testing.T) {
	for w := Rectangular; w <= Nuttall; w++ {
		t.Run(w.String(), func(t *testing.T) {
			c := coefficients(512, w)
			var sq float64
			for _, v := range c {
				sq += v * v
			}
			require.InDelta(t, 512, sq, 1e-9)
		})
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{" blackman ", Blackman, false},
		{"none", Rectangular, false},
		{"kaiser", Hann, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.in)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestErrors(t *testing.T) {
	_, err := New(2, 300, 1024)
	require.Error(t, err)
	_, err = New(2, 256, 0)
	require.Error(t, err)
	_, err = New(2, 256, 1024, WithOverlap(1))
	require.Error(t, err)

	p, err := New(2, 256, 1024)
	require.NoError(t, err)
	_, err = p.CSM()
	require.True(t, errors.Is(err, ErrNoBlocks))

	err = p.Write(utils.Interleave(1024, make([]float64, 10)))
	require.True(t, errors.Is(err, ErrChannels))
}
