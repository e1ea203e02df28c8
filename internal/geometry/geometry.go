// SPDX-License-Identifier: MIT

// Package geometry provides the microphone and grid positions consumed by the
// beamformer, and reduces them to the scalar distances and wavenumbers the
// kernels operate on.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned for position or distance arrays with
// inconsistent dimensions.
var ErrShapeMismatch = errors.New("geometry: shape mismatch")

// MicGeom holds microphone positions as a 3×NumMics matrix (x, y, z rows).
type MicGeom struct {
	Positions *mat.Dense
}

// NewMicGeom builds a MicGeom from a list of (x, y, z) positions.
func NewMicGeom(positions [][3]float64) (*MicGeom, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: no microphones", ErrShapeMismatch)
	}
	return &MicGeom{Positions: columns(positions)}, nil
}

// NumMics returns the number of microphones.
func (g *MicGeom) NumMics() int {
	_, c := g.Positions.Dims()
	return c
}

// Center returns the centroid of the microphone positions.
func (g *MicGeom) Center() [3]float64 {
	var center [3]float64
	n := g.NumMics()
	for i := range 3 {
		center[i] = mat.Sum(g.Positions.RowView(i)) / float64(n)
	}
	return center
}

// Grid is any set of candidate source positions.
type Grid interface {
	// Points returns the grid positions as a 3×NumGrid matrix.
	Points() *mat.Dense
}

// RectGrid is a regular grid in a plane of constant z.
type RectGrid struct {
	XMin, XMax float64
	YMin, YMax float64
	Z          float64
	Increment  float64
}

// NumX returns the number of grid points along x.
func (g RectGrid) NumX() int {
	return int(math.Round((g.XMax-g.XMin)/g.Increment)) + 1
}

// NumY returns the number of grid points along y.
func (g RectGrid) NumY() int {
	return int(math.Round((g.YMax-g.YMin)/g.Increment)) + 1
}

// Points returns the grid positions ordered x-major, so index i*NumY()+j is
// the point (XMin+i·Increment, YMin+j·Increment).
func (g RectGrid) Points() *mat.Dense {
	nx, ny := g.NumX(), g.NumY()
	pts := mat.NewDense(3, nx*ny, nil)
	for i := range nx {
		for j := range ny {
			idx := i*ny + j
			pts.Set(0, idx, g.XMin+float64(i)*g.Increment)
			pts.Set(1, idx, g.YMin+float64(j)*g.Increment)
			pts.Set(2, idx, g.Z)
		}
	}
	return pts
}

// PointGrid is an explicit list of positions.
type PointGrid [][3]float64

// Points returns the positions as a 3×N matrix.
func (p PointGrid) Points() *mat.Dense {
	return columns(p)
}

// Distances are the scalar geometry inputs of the beamformer kernels.
type Distances struct {
	// Center holds one distance per grid point to the array center.
	Center []float64
	// Mics is NumGrid×NumMics, the distance of every grid point to every
	// microphone.
	Mics *mat.Dense
}

// NumGrid returns the number of grid points.
func (d *Distances) NumGrid() int { return len(d.Center) }

// NumMics returns the number of microphones.
func (d *Distances) NumMics() int {
	_, c := d.Mics.Dims()
	return c
}

// Validate checks that Center and Mics agree on the grid size.
func (d *Distances) Validate() error {
	if d == nil || d.Mics == nil {
		return fmt.Errorf("%w: distances not set", ErrShapeMismatch)
	}
	r, _ := d.Mics.Dims()
	if r != len(d.Center) {
		return fmt.Errorf("%w: %d center distances for %d grid rows", ErrShapeMismatch, len(d.Center), r)
	}
	return nil
}

// Compute returns the straight-line distances between grid and microphones.
// The array center is the microphone centroid.
func Compute(grid Grid, mics *MicGeom) *Distances {
	pts := grid.Points()
	_, nGrid := pts.Dims()
	nMics := mics.NumMics()
	center := mics.Center()

	d := &Distances{
		Center: make([]float64, nGrid),
		Mics:   mat.NewDense(nGrid, nMics, nil),
	}
	for g := range nGrid {
		p := [3]float64{pts.At(0, g), pts.At(1, g), pts.At(2, g)}
		d.Center[g] = dist(p, center)
		row := d.Mics.RawRowView(g)
		for m := range nMics {
			row[m] = dist(p, [3]float64{
				mics.Positions.At(0, m),
				mics.Positions.At(1, m),
				mics.Positions.At(2, m),
			})
		}
	}
	return d
}

// Wavenumbers converts frequencies (Hz) to wavenumbers at speed of sound c.
// By convention the magnitude 2πf/c is stored in the imaginary part.
func Wavenumbers(freqs []float64, c float64) []complex128 {
	k := make([]complex128, len(freqs))
	for i, f := range freqs {
		k[i] = complex(0, 2*math.Pi*f/c)
	}
	return k
}

func columns(positions [][3]float64) *mat.Dense {
	m := mat.NewDense(3, len(positions), nil)
	for j, p := range positions {
		m.Set(0, j, p[0])
		m.Set(1, j, p[1])
		m.Set(2, j, p[2])
	}
	return m
}

func dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
