// SPDX-License-Identifier: MIT
package config

import (
	"strings"

	"beamform/internal/beamformer"
	"beamform/internal/eigen"
	"beamform/internal/geometry"
	applog "beamform/internal/log"
	"beamform/internal/source"
	"beamform/internal/spectra"
	"beamform/internal/steer"
)

// The accessors below assume a validated Config.

// Level returns the effective log level. Debug forces LevelDebug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	lvl, _ := applog.ParseLevel(c.LogLevel)
	return lvl
}

// Variant returns the configured kernel.
func (c *Config) Variant() beamformer.Variant {
	f, _ := steer.ParseFormulation(c.Beamforming.Formulation)
	return beamformer.Variant{
		Eigen:       c.Beamforming.Eigen,
		Formulation: f,
		RemovedDiag: c.Beamforming.RemovedDiagonal,
	}
}

// EigenRange returns the eigenpairs to keep.
func (c *Config) EigenRange() eigen.Range {
	if c.Beamforming.EigenCount == 0 {
		return eigen.All()
	}
	return eigen.Largest(c.Beamforming.EigenCount)
}

// MicGeom returns the microphone array.
func (c *Config) MicGeom() (*geometry.MicGeom, error) {
	pos := make([][3]float64, len(c.Array.Positions))
	for i, p := range c.Array.Positions {
		copy(pos[i][:], p)
	}
	return geometry.NewMicGeom(pos)
}

// FocusGrid returns the focus grid.
func (c *Config) FocusGrid() geometry.RectGrid {
	g := c.Grid
	return geometry.RectGrid{
		XMin:      g.XMin,
		XMax:      g.XMax,
		YMin:      g.YMin,
		YMax:      g.YMax,
		Z:         g.Z,
		Increment: g.Increment,
	}
}

// Window returns the spectra window function.
func (c *Config) Window() spectra.WindowFunc {
	w, _ := spectra.ParseWindowFunc(c.Spectra.Window)
	return w
}

// Signal returns the source waveform.
func (c *Config) Signal() source.Signal {
	s := c.Source
	n := int(s.Duration * s.SampleRate)
	if strings.EqualFold(s.Signal, "sine") {
		return source.SineGenerator{Freq: s.Frequency, Amplitude: s.Amplitude, Rate: s.SampleRate, Length: n}
	}
	return source.WhiteNoiseGenerator{RMS: s.Amplitude, Rate: s.SampleRate, Length: n, Seed: s.Seed}
}

// Moving reports whether the source has a non-zero velocity.
func (c *Config) Moving() bool {
	for _, v := range c.Source.Velocity {
		if v != 0 {
			return true
		}
	}
	return false
}

// Trajectory returns the source path, a straight line through Position at
// t=0.
func (c *Config) Trajectory() source.LinearTrajectory {
	var tr source.LinearTrajectory
	copy(tr.Origin[:], c.Source.Position)
	copy(tr.Vel[:], c.Source.Velocity)
	return tr
}

// SourceOptions returns the options shared by fixed and moving sources.
func (c *Config) SourceOptions() []source.Option {
	opts := []source.Option{
		source.WithSoundSpeed(c.Beamforming.SoundSpeed),
		source.WithUpsampling(c.Source.Upsampling),
	}
	solver := []source.SolverOption{source.WithMaxIterations(c.Solver.MaxIterations)}
	if c.Solver.Tolerance > 0 {
		solver = append(solver, source.WithTolerance(c.Solver.Tolerance))
	}
	return append(opts, source.WithSolver(solver...))
}

// SpectraOptions returns the spectra processor options.
func (c *Config) SpectraOptions() []spectra.Option {
	opts := []spectra.Option{
		spectra.WithWindow(c.Window()),
		spectra.WithOverlap(c.Spectra.Overlap),
	}
	if c.Spectra.FreqLow > 0 || c.Spectra.FreqHigh > 0 {
		hi := c.Spectra.FreqHigh
		if hi == 0 {
			hi = c.Source.SampleRate / 2
		}
		opts = append(opts, spectra.WithBand(c.Spectra.FreqLow, hi))
	}
	return opts
}
