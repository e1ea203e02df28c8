// SPDX-License-Identifier: MIT
package spectra

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied to every block before the FFT.
type WindowFunc int

const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = [...]string{
	Rectangular:     "rectangular",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windowNames[w]
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangular", "boxcar", "none":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	}
	return Hann, fmt.Errorf("unknown window function %q", name)
}

// coefficients returns n window coefficients scaled so that their squares
// sum to n, which keeps the spectral power independent of the window.
func coefficients(n int, w WindowFunc) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = 1
	}
	switch w {
	case Rectangular:
	case BartlettHann:
		window.BartlettHann(c)
	case Blackman:
		window.Blackman(c)
	case BlackmanNuttall:
		window.BlackmanNuttall(c)
	case Hamming:
		window.Hamming(c)
	case Lanczos:
		window.Lanczos(c)
	case Nuttall:
		window.Nuttall(c)
	default:
		window.Hann(c)
	}

	var sq float64
	for _, v := range c {
		sq += v * v
	}
	if sq > 0 {
		scale := math.Sqrt(float64(n) / sq)
		for i := range c {
			c[i] *= scale
		}
	}
	return c
}
