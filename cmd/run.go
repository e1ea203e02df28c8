// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"beamform/internal/analysis"
	"beamform/internal/beamformer"
	"beamform/internal/config"
	"beamform/internal/csm"
	"beamform/internal/eigen"
	"beamform/internal/geometry"
	"beamform/internal/source"
	"beamform/internal/spectra"
	"beamform/internal/transfer"
	"beamform/internal/transport"
	"beamform/internal/transport/udp"

	"gonum.org/v1/gonum/mat"
)

// newGenerator returns the configured fixed or moving source.
func newGenerator(cfg *config.Config, mics *geometry.MicGeom) (source.Generator, error) {
	if cfg.Moving() {
		return source.NewMovingPointSource(cfg.Signal(), cfg.Trajectory(), mics, cfg.SourceOptions()...)
	}
	var loc [3]float64
	copy(loc[:], cfg.Source.Position)
	return source.NewPointSource(cfg.Signal(), loc, mics, cfg.SourceOptions()...)
}

// ComputeMap simulates the configured source, estimates its cross-spectral
// matrix and evaluates the configured beamformer on the focus grid.
func ComputeMap(ctx context.Context, cfg *config.Config) (*transport.MapFrame, error) {
	mics, err := cfg.MicGeom()
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(cfg, mics)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	buf, err := source.Collect(ctx, gen, cfg.Spectra.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render source: %w", err)
	}
	logger.Debugf("rendered %d frames in %s", buf.NumFrames(), time.Since(start))

	proc, err := spectra.New(mics.NumMics(), cfg.Spectra.BlockSize, cfg.Source.SampleRate, cfg.SpectraOptions()...)
	if err != nil {
		return nil, err
	}
	if err := proc.Write(buf); err != nil {
		return nil, err
	}
	cross, err := proc.CSM()
	if err != nil {
		return nil, err
	}
	freqs := proc.Frequencies()
	centre, fraction := cfg.Beamforming.Frequency, cfg.Beamforming.BandFraction
	if centre > 0 {
		lo := proc.FrequencyIndex(centre)
		hi := lo + 1
		if fraction > 0 {
			band := analysis.FractionalOctave(centre, fraction)
			if lo, hi = analysis.BinRange(freqs, band); lo == hi {
				return nil, fmt.Errorf("no spectra bins in %s", band.Name)
			}
		}
		slices := make([]*mat.CDense, hi-lo)
		for i := range slices {
			slices[i] = cross.Slice(lo + i)
		}
		if cross, err = csm.FromSlices(slices); err != nil {
			return nil, err
		}
		freqs = freqs[lo:hi]
	}
	logger.Debugf("CSM from %d blocks, %d frequencies", proc.Blocks(), len(freqs))

	v := cfg.Variant()
	grid := cfg.FocusGrid()
	dists := geometry.Compute(grid, mics)
	in := beamformer.Inputs{
		Distances:  dists,
		Wavenumber: geometry.Wavenumbers(freqs, cfg.Beamforming.SoundSpeed),
		CSM:        cross,
	}
	if !v.Formulation.Predefined() {
		if in.SteeringVectors, err = transfer.Evaluate(dists, in.Wavenumber); err != nil {
			return nil, err
		}
	}
	if v.Eigen {
		if in.Eigen, err = eigen.Decompose(cross, cfg.EigenRange()); err != nil {
			return nil, err
		}
	}

	start = time.Now()
	power, err := beamformer.Evaluate(v, cfg.Beamforming.NormFactor, in, beamformer.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, err
	}
	logger.Debugf("evaluated %v in %s", v, time.Since(start))

	if centre > 0 && fraction > 0 {
		row, err := analysis.Synthetic(freqs, power, centre, fraction)
		if err != nil {
			return nil, err
		}
		power, freqs = [][]float64{row}, []float64{centre}
	}

	return &transport.MapFrame{
		Variant:     v.String(),
		Timestamp:   time.Now(),
		Frequencies: freqs,
		XMin:        grid.XMin,
		YMin:        grid.YMin,
		Increment:   grid.Increment,
		NumX:        grid.NumX(),
		NumY:        grid.NumY(),
		Power:       power,
	}, nil
}

// Publish sends frame to the log and to every enabled network transport.
// With a network transport enabled it blocks until ctx is done.
func Publish(ctx context.Context, cfg *config.Config, frame *transport.MapFrame) (err error) {
	fan := transport.Fanout{transport.NewLoggingTransport()}
	defer func() {
		if cerr := fan.Close(); err == nil {
			err = cerr
		}
	}()

	t := cfg.Transport
	if t.WebSocketEnabled {
		fan = append(fan, transport.NewWebSocketTransport(t.WebSocketAddress))
	}
	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return err
		}
		store := &transport.FrameStore{}
		publisher, err := udp.NewPublisher(t.UDPSendInterval, sender, store)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		fan = append(fan, store, closer{publisher}, closer{sender})
	}

	if err := fan.Send(frame); err != nil {
		return err
	}
	if len(fan) == 1 {
		return nil
	}

	logger.Infof("publishing, interrupt to stop")
	<-ctx.Done()
	return nil
}

// closer adapts an io.Closer to a Transport that ignores frames.
type closer struct{ io.Closer }

func (closer) Send(*transport.MapFrame) error { return nil }

// Trace solves the emission times of the configured source for n receiving
// samples and writes one line per sample to w.
func Trace(w io.Writer, cfg *config.Config, n int) error {
	if n < 1 {
		return fmt.Errorf("sample count must be positive, got %d", n)
	}
	mics, err := cfg.MicGeom()
	if err != nil {
		return err
	}
	p, err := source.NewMovingPointSource(cfg.Signal(), cfg.Trajectory(), mics, cfg.SourceOptions()...)
	if err != nil {
		return err
	}

	rt := p.Solver(source.WithSampleLimit(n))
	for rt.Next() {
		var sb strings.Builder
		for m, te := range rt.Times() {
			if m > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%.9f", te)
		}
		fmt.Fprintf(w, "t=%.9f iterations=%d converged=%t te=[%s]\n",
			rt.Receiving(), rt.Iterations(), rt.Converged(), sb.String())
	}
	if k := rt.NonConverged(); k > 0 {
		logger.Warnf("%d of %d samples did not converge", k, rt.Samples())
	}
	return nil
}
