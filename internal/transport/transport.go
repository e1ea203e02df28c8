// SPDX-License-Identifier: MIT

// Package transport publishes computed beamforming maps.
package transport

import (
	"errors"
	"sync/atomic"
	"time"
)

// MapFrame is one beamforming result ready for display.
type MapFrame struct {
	Variant     string      `json:"variant"`
	Timestamp   time.Time   `json:"timestamp"`
	Frequencies []float64   `json:"frequencies"`
	XMin        float64     `json:"x_min"`
	YMin        float64     `json:"y_min"`
	Increment   float64     `json:"increment"`
	NumX        int         `json:"nx"`
	NumY        int         `json:"ny"`
	Power       [][]float64 `json:"power"` // [frequency][grid point], grid x-major.
}

// NumGrid returns the number of grid points per frequency.
func (f *MapFrame) NumGrid() int { return f.NumX * f.NumY }

// Position returns the (x, y) coordinates of grid index g.
func (f *MapFrame) Position(g int) (x, y float64) {
	i, j := g/f.NumY, g%f.NumY
	return f.XMin + float64(i)*f.Increment, f.YMin + float64(j)*f.Increment
}

// Transport sends map frames somewhere. Implementations are safe for
// concurrent use.
type Transport interface {
	Send(frame *MapFrame) error
	Close() error
}

// FrameStore holds the most recent frame for periodic publishers.
type FrameStore struct {
	latest atomic.Pointer[MapFrame]
}

// Send replaces the stored frame. It never fails.
func (s *FrameStore) Send(frame *MapFrame) error {
	s.latest.Store(frame)
	return nil
}

// Latest returns the last frame sent, or nil.
func (s *FrameStore) Latest() *MapFrame { return s.latest.Load() }

// Close is a no-op.
func (s *FrameStore) Close() error { return nil }

// Fanout sends every frame to all of its transports.
type Fanout []Transport

// Send forwards frame to every transport and joins their errors.
func (f Fanout) Send(frame *MapFrame) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Transport = (*FrameStore)(nil)
	_ Transport = Fanout(nil)
)
