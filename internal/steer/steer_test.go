// SPDX-License-Identifier: MIT
package steer

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormulation(t *testing.T) {
	tests := []struct {
		in   string
		want Formulation
	}{
		{"1", Classic},
		{"I", Classic},
		{"classic", Classic},
		{"II", Inverse},
		{"true-level", TrueLevel},
		{"iii", TrueLevel},
		{"4", TrueLocation},
		{"True Location", TrueLocation},
		{"specific", Specific},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormulation(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormulation("V")
	require.True(t, errors.Is(err, ErrUnknownFormulation))
}

func TestFormulationTextRoundTrip(t *testing.T) {
	for _, f := range Formulations() {
		text, err := f.MarshalText()
		require.NoError(t, err)

		var back Formulation
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, f, back)
	}

	_, err := Formulation(42).MarshalText()
	require.Error(t, err)
}

func TestPhasorPolicy(t *testing.T) {
	k, r := 2*math.Pi*1000/343.0, 1.2345678
	got := Phasor(k, r)

	require.InDelta(t, 1.0, cmplx.Abs(got), 1e-12)

	arg := k * r
	if ReducedPrecisionPhase {
		arg = float64(float32(arg))
	}
	require.InDelta(t, math.Cos(arg), real(got), 1e-15)
	require.InDelta(t, -math.Sin(arg), imag(got), 1e-15)
}

func TestBuildScaling(t *testing.T) {
	dists := []float64{1, 2, 4}
	k := 3.0

	classic := Vector(Classic, k, 0, dists)
	inverse := make([]complex128, len(dists))
	level := make([]complex128, len(dists))
	require.Zero(t, Build(Inverse, inverse, k, 0, dists))
	invSq := Build(TrueLevel, level, k, 0, dists)

	require.InDelta(t, 1+0.25+0.0625, invSq, 1e-15)
	for m, r := range dists {
		require.InDelta(t, 1.0, cmplx.Abs(classic[m]), 1e-12)
		require.InDelta(t, r, cmplx.Abs(inverse[m]), 1e-12)
		require.InDelta(t, 1/r, cmplx.Abs(level[m]), 1e-12)
	}

	require.Panics(t, func() { Build(Specific, classic, k, 0, dists) })
}

func TestNormalizationSingleMic(t *testing.T) {
	// With one microphone the geometry terms cancel against |h|² for every
	// predefined formulation.
	r := 2.5
	for _, f := range []Formulation{Classic, Inverse, TrueLevel, TrueLocation} {
		h := make([]complex128, 1)
		invSq := Build(f, h, 7, 0, []float64{r})
		hh := real(h[0] * cmplx.Conj(h[0]))
		require.InDelta(t, 1.0, hh/Normalization(f, 1, r, invSq), 1e-12, f.String())
	}
}
