// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults used when neither the configuration file nor the environment
// set a value.
const (
	DefaultLogLevel = "info"
	DefaultWorkers  = 0 // GOMAXPROCS

	// Beamforming
	DefaultFormulation = "classic"
	DefaultNormFactor  = 1.0
	DefaultSoundSpeed  = 343.0 // m/s
	DefaultFrequency   = 2000  // Hz, analysis frequency

	// Array: a ring of DefaultRingMics microphones plus one at the centre.
	DefaultRingMics   = 8
	DefaultRingRadius = 0.25 // m

	// Grid
	DefaultGridExtent    = 1.0  // m, half width in x and y
	DefaultGridZ         = 1.0  // m
	DefaultGridIncrement = 0.05 // m

	// Source
	DefaultSignal          = "noise"
	DefaultSignalAmplitude = 1.0
	DefaultSignalFrequency = 2000  // Hz, sine only
	DefaultSampleRate      = 51200 // Hz
	DefaultDuration        = 1.0   // s
	DefaultUpsampling      = 16
	DefaultSeed            = 1

	// Spectra
	DefaultBlockSize = 512
	DefaultOverlap   = 0.5
	DefaultWindow    = "hann"

	// Retarded time solver
	DefaultMaxIterations = 100

	// Transport
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond
	DefaultWebSocketAddress = "127.0.0.1:8080"

	// Limits
	MinSampleRate = 1000
	MaxSampleRate = 192000
	MaxBlockSize  = 65536
)
