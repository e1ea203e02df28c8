// SPDX-License-Identifier: MIT

// Package utils holds small helpers shared by the packages and their tests.
package utils

import (
	"math"
	"slices"
	"sync"

	"github.com/go-audio/audio"
)

// MockTransport records every value sent to it instead of transmitting.
// Clone, when set, copies each value before it is stored.
type MockTransport[T any] struct {
	Clone func(T) T

	mu     sync.Mutex
	sent   []T
	closed bool
}

// Send stores v for later inspection.
func (m *MockTransport[T]) Send(v T) error {
	if m.Clone != nil {
		v = m.Clone(v)
	}
	m.mu.Lock()
	m.sent = append(m.sent, v)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport[T]) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport[T]) Sent() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// Closed reports whether Close was called.
func (m *MockTransport[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440 Hz tone with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
	}
	return buffer
}

// GenerateSineWave returns size samples of amplitude·sin(2π·f·t).
func GenerateSineWave(size int, amplitude, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// Interleave packs equally long channels into one multi-channel buffer.
func Interleave(sampleRate int, channels ...[]float64) *audio.FloatBuffer {
	var n int
	if len(channels) > 0 {
		n = len(channels[0])
	}
	buf := &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: len(channels), SampleRate: sampleRate},
		Data:   make([]float64, n*len(channels)),
	}
	for m, ch := range channels {
		for i, v := range ch[:n] {
			buf.Data[i*len(channels)+m] = v
		}
	}
	return buf
}

// PeakIndex returns the index of the largest value in values[startBin..endBin]
// (inclusive, clamped to the slice), or -1 when the range is empty. Ties keep
// the first index.
func PeakIndex(values []float64, startBin, endBin int) int {
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(values) {
		endBin = len(values) - 1
	}
	if startBin > endBin {
		return -1
	}

	peakBin := startBin
	peakValue := values[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}
	return peakBin
}
