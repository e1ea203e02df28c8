// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	applog "beamform/internal/log"
	"beamform/internal/spectra"
	"beamform/internal/steer"
	"beamform/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var logger = applog.Component("config")

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug       bool              `yaml:"debug"`       // Force debug logging.
	LogLevel    string            `yaml:"log_level"`   // debug, info, warn, error.
	Workers     int               `yaml:"workers"`     // Goroutine limit for the kernels, 0 for GOMAXPROCS.
	Beamforming BeamformingConfig `yaml:"beamforming"` // Kernel selection.
	Array       ArrayConfig       `yaml:"array"`       // Microphone positions.
	Grid        GridConfig        `yaml:"grid"`        // Focus grid.
	Source      SourceConfig      `yaml:"source"`      // Simulated source.
	Spectra     SpectraConfig     `yaml:"spectra"`     // CSM estimation.
	Solver      SolverConfig      `yaml:"solver"`      // Retarded time solver.
	Transport   TransportConfig   `yaml:"transport"`   // Map publishing.
}

// BeamformingConfig selects the kernel and its physical constants.
type BeamformingConfig struct {
	Formulation     string  `yaml:"formulation"`      // classic, inverse, true-level, true-location (or I..IV), specific.
	Eigen           bool    `yaml:"eigen"`            // Evaluate from the CSM eigendecomposition.
	EigenCount      int     `yaml:"eigen_count"`      // Largest eigenpairs kept, 0 for all.
	RemovedDiagonal bool    `yaml:"removed_diagonal"` // Drop the CSM diagonal.
	NormFactor      float64 `yaml:"norm_factor"`      // Signal loss normalization applied to every result.
	SoundSpeed      float64 `yaml:"sound_speed"`      // m/s
	Frequency       float64 `yaml:"frequency"`        // Hz, 0 maps every bin of the spectra band.
	BandFraction    int     `yaml:"band_fraction"`    // Sum 1/n octave bands around Frequency, 0 for a single bin.
}

// ArrayConfig holds the microphone coordinates in metres.
type ArrayConfig struct {
	Positions [][]float64 `yaml:"positions"` // One [x, y, z] per microphone.
}

// GridConfig describes a rectangular focus grid at constant z.
type GridConfig struct {
	XMin      float64 `yaml:"x_min"`
	XMax      float64 `yaml:"x_max"`
	YMin      float64 `yaml:"y_min"`
	YMax      float64 `yaml:"y_max"`
	Z         float64 `yaml:"z"`
	Increment float64 `yaml:"increment"`
}

// SourceConfig describes the simulated point source.
type SourceConfig struct {
	Signal     string    `yaml:"signal"`      // sine or noise.
	Amplitude  float64   `yaml:"amplitude"`   // Peak for sine, RMS for noise.
	Frequency  float64   `yaml:"frequency"`   // Hz, sine only.
	SampleRate float64   `yaml:"sample_rate"` // Hz
	Duration   float64   `yaml:"duration"`    // s
	Position   []float64 `yaml:"position"`    // [x, y, z] at t=0.
	Velocity   []float64 `yaml:"velocity"`    // [vx, vy, vz], empty or zero for a fixed source.
	Upsampling int       `yaml:"upsampling"`  // Signal upsampling before lookup.
	Seed       uint64    `yaml:"seed"`        // Noise seed.
}

// SpectraConfig controls the block FFT.
type SpectraConfig struct {
	BlockSize int     `yaml:"block_size"` // Power of two.
	Overlap   float64 `yaml:"overlap"`    // Fraction in [0, 1).
	Window    string  `yaml:"window"`     // hann, hamming, blackman, ...
	FreqLow   float64 `yaml:"freq_low"`   // Hz
	FreqHigh  float64 `yaml:"freq_high"`  // Hz, 0 for Nyquist.
}

// SolverConfig tunes the retarded time solver.
type SolverConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"` // s, 0 for a tenth of an upsampled sample.
}

// TransportConfig holds settings for publishing computed maps.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send maps over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve maps to WebSocket clients.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Workers:  DefaultWorkers,
		Beamforming: BeamformingConfig{
			Formulation: DefaultFormulation,
			NormFactor:  DefaultNormFactor,
			SoundSpeed:  DefaultSoundSpeed,
			Frequency:   DefaultFrequency,
		},
		Array: ArrayConfig{Positions: ringArray(DefaultRingMics, DefaultRingRadius)},
		Grid: GridConfig{
			XMin:      -DefaultGridExtent,
			XMax:      DefaultGridExtent,
			YMin:      -DefaultGridExtent,
			YMax:      DefaultGridExtent,
			Z:         DefaultGridZ,
			Increment: DefaultGridIncrement,
		},
		Source: SourceConfig{
			Signal:     DefaultSignal,
			Amplitude:  DefaultSignalAmplitude,
			Frequency:  DefaultSignalFrequency,
			SampleRate: DefaultSampleRate,
			Duration:   DefaultDuration,
			Position:   []float64{0.3, -0.2, DefaultGridZ},
			Upsampling: DefaultUpsampling,
			Seed:       DefaultSeed,
		},
		Spectra: SpectraConfig{
			BlockSize: DefaultBlockSize,
			Overlap:   DefaultOverlap,
			Window:    DefaultWindow,
		},
		Solver: SolverConfig{MaxIterations: DefaultMaxIterations},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

func ringArray(n int, radius float64) [][]float64 {
	pos := [][]float64{{0, 0, 0}}
	for i := range n {
		phi := 2 * math.Pi * float64(i) / float64(n)
		pos = append(pos, []float64{radius * math.Cos(phi), radius * math.Sin(phi), 0})
	}
	return pos
}

// LoadConfig loads configuration from the YAML file at path. With an empty
// path it looks for "config.yaml" in the working directory and falls back
// to the built-in defaults. Environment overrides are applied last, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	invalid := func(format string, v ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, v...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is unknown", c.LogLevel)
	}
	if c.Workers < 0 {
		return invalid("workers must not be negative, got %d", c.Workers)
	}

	b := c.Beamforming
	if _, err := steer.ParseFormulation(b.Formulation); err != nil {
		return invalid("beamforming.formulation: %v", err)
	}
	if b.EigenCount < 0 {
		return invalid("beamforming.eigen_count must not be negative, got %d", b.EigenCount)
	}
	if b.NormFactor <= 0 {
		return invalid("beamforming.norm_factor must be positive, got %g", b.NormFactor)
	}
	if b.SoundSpeed <= 0 {
		return invalid("beamforming.sound_speed must be positive, got %g", b.SoundSpeed)
	}
	if b.Frequency < 0 {
		return invalid("beamforming.frequency must not be negative, got %g", b.Frequency)
	}
	if b.BandFraction < 0 {
		return invalid("beamforming.band_fraction must not be negative, got %d", b.BandFraction)
	}

	if len(c.Array.Positions) == 0 {
		return invalid("array.positions is empty")
	}
	for i, p := range c.Array.Positions {
		if len(p) != 3 {
			return invalid("array.positions[%d] has %d coordinates, want 3", i, len(p))
		}
	}
	if b.EigenCount > len(c.Array.Positions) {
		return invalid("beamforming.eigen_count %d exceeds %d microphones", b.EigenCount, len(c.Array.Positions))
	}

	g := c.Grid
	if g.Increment <= 0 {
		return invalid("grid.increment must be positive, got %g", g.Increment)
	}
	if g.XMax < g.XMin || g.YMax < g.YMin {
		return invalid("grid extents are inverted")
	}

	s := c.Source
	switch strings.ToLower(s.Signal) {
	case "sine", "noise":
	default:
		return invalid("source.signal %q is unknown, want sine or noise", s.Signal)
	}
	if s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate {
		return invalid("source.sample_rate %g outside [%d, %d]", s.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if s.Duration <= 0 {
		return invalid("source.duration must be positive, got %g", s.Duration)
	}
	if len(s.Position) != 3 {
		return invalid("source.position has %d coordinates, want 3", len(s.Position))
	}
	if len(s.Velocity) != 0 && len(s.Velocity) != 3 {
		return invalid("source.velocity has %d coordinates, want 0 or 3", len(s.Velocity))
	}
	if s.Upsampling < 1 {
		return invalid("source.upsampling must be at least 1, got %d", s.Upsampling)
	}

	sp := c.Spectra
	if !bitint.IsPowerOfTwo(sp.BlockSize) || sp.BlockSize > MaxBlockSize {
		return invalid("spectra.block_size must be a power of 2 up to %d, got %d", MaxBlockSize, sp.BlockSize)
	}
	if sp.Overlap < 0 || sp.Overlap >= 1 {
		return invalid("spectra.overlap must be in [0, 1), got %g", sp.Overlap)
	}
	if _, err := spectra.ParseWindowFunc(sp.Window); err != nil {
		return invalid("spectra.window: %v", err)
	}
	if sp.FreqLow < 0 || (sp.FreqHigh != 0 && sp.FreqHigh < sp.FreqLow) {
		return invalid("spectra band [%g, %g] is invalid", sp.FreqLow, sp.FreqHigh)
	}

	if c.Solver.MaxIterations < 1 {
		return invalid("solver.max_iterations must be at least 1, got %d", c.Solver.MaxIterations)
	}
	if c.Solver.Tolerance < 0 {
		return invalid("solver.tolerance must not be negative, got %g", c.Solver.Tolerance)
	}

	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return invalid("transport.udp_target_address %q is missing a port", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when WebSocket is enabled")
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparsable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			logger.Infof("overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}
	// ENV_WORKERS
	if val, ok := os.LookupEnv("ENV_WORKERS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Workers = n
			logger.Infof("overriding workers from env: %d", n)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			logger.Infof("overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			logger.Infof("overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
