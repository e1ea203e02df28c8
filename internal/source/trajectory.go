// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// ErrTrajectory is returned for waypoint sets a spline cannot be fitted to.
var ErrTrajectory = errors.New("source: invalid trajectory")

// Trajectory gives the position of a source and its first time derivative
// at an arbitrary time.
type Trajectory interface {
	Location(t float64) [3]float64
	Velocity(t float64) [3]float64
}

// LinearTrajectory moves with constant velocity Vel and passes Origin at
// time T0.
type LinearTrajectory struct {
	Origin [3]float64
	Vel    [3]float64
	T0     float64
}

// Location returns Origin + Vel·(t-T0).
func (l LinearTrajectory) Location(t float64) [3]float64 {
	dt := t - l.T0
	return [3]float64{
		l.Origin[0] + l.Vel[0]*dt,
		l.Origin[1] + l.Vel[1]*dt,
		l.Origin[2] + l.Vel[2]*dt,
	}
}

// Velocity returns Vel.
func (l LinearTrajectory) Velocity(float64) [3]float64 { return l.Vel }

// SplineTrajectory interpolates timed waypoints with one Akima spline per
// coordinate.
type SplineTrajectory struct {
	axes [3]interp.AkimaSpline
}

// NewSplineTrajectory fits a trajectory through points[i] at times[i].
// times must be strictly increasing and at least two waypoints are needed.
func NewSplineTrajectory(times []float64, points [][3]float64) (*SplineTrajectory, error) {
	if len(times) != len(points) {
		return nil, fmt.Errorf("%w: %d times for %d waypoints", ErrTrajectory, len(times), len(points))
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: need at least two waypoints, got %d", ErrTrajectory, len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("%w: waypoint times not increasing at index %d", ErrTrajectory, i)
		}
	}

	s := &SplineTrajectory{}
	coord := make([]float64, len(points))
	for axis := range 3 {
		for i, p := range points {
			coord[i] = p[axis]
		}
		if err := s.axes[axis].Fit(times, coord); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTrajectory, err)
		}
	}
	return s, nil
}

// Location returns the interpolated position at t.
func (s *SplineTrajectory) Location(t float64) [3]float64 {
	return [3]float64{s.axes[0].Predict(t), s.axes[1].Predict(t), s.axes[2].Predict(t)}
}

// Velocity returns the derivative of the interpolated position at t.
func (s *SplineTrajectory) Velocity(t float64) [3]float64 {
	return [3]float64{
		s.axes[0].PredictDerivative(t),
		s.axes[1].PredictDerivative(t),
		s.axes[2].PredictDerivative(t),
	}
}
