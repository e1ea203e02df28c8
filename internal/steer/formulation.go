// SPDX-License-Identifier: MIT
package steer

import (
	"errors"
	"fmt"
	"strings"
)

// Formulation selects how the free-field steering vector between a grid point
// and the microphones is normalized (Sarradj 2012, formulations I-IV).
type Formulation int

// Enum for available steering vector formulations.
const (
	Classic      Formulation = iota + 1 // I: unscaled phasor, divided by nMics².
	Inverse                             // II: phasor times r_m, divided by (nMics·r0)².
	TrueLevel                           // III: phasor over r_m, divided by (r0·Σ1/r_m²)².
	TrueLocation                        // IV: phasor over r_m, divided by nMics·Σ1/r_m².
	Specific                            // Caller supplies the steering vectors verbatim.
)

// ErrUnknownFormulation is returned when a formulation name or value is not
// one of the supported conventions.
var ErrUnknownFormulation = errors.New("unknown steering vector formulation")

// Formulations lists every supported formulation in dispatch order.
func Formulations() []Formulation {
	return []Formulation{Classic, Inverse, TrueLevel, TrueLocation, Specific}
}

// String returns the string representation of the Formulation.
func (f Formulation) String() string {
	switch f {
	case Classic:
		return "classic"
	case Inverse:
		return "inverse"
	case TrueLevel:
		return "true-level"
	case TrueLocation:
		return "true-location"
	case Specific:
		return "specific"
	default:
		return fmt.Sprintf("Formulation(%d)", int(f))
	}
}

// Valid reports whether f is one of the declared formulations.
func (f Formulation) Valid() bool {
	return f >= Classic && f <= Specific
}

// Predefined reports whether the steering vector is built from geometry
// (formulations I-IV) rather than passed in by the caller.
func (f Formulation) Predefined() bool {
	return f >= Classic && f <= TrueLocation
}

// ParseFormulation converts a name (case-insensitive) to a Formulation. Roman
// and arabic numerals are accepted as well as the descriptive names.
func ParseFormulation(name string) (Formulation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "1", "i", "classic":
		return Classic, nil
	case "2", "ii", "inverse":
		return Inverse, nil
	case "3", "iii", "true-level", "truelevel", "true level":
		return TrueLevel, nil
	case "4", "iv", "true-location", "truelocation", "true location":
		return TrueLocation, nil
	case "specific", "custom":
		return Specific, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormulation, name)
	}
}

// MarshalText implements encoding.TextMarshaler so formulations round-trip
// through YAML and JSON configuration.
func (f Formulation) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormulation, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Formulation) UnmarshalText(text []byte) error {
	parsed, err := ParseFormulation(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
