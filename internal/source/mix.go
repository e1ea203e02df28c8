// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"fmt"
	"math"

	"github.com/go-audio/audio"
	"golang.org/x/sync/errgroup"
)

// Collect concatenates all blocks of g into one buffer.
func Collect(ctx context.Context, g Generator, num int) (*audio.FloatBuffer, error) {
	out := &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: g.NumChannels(), SampleRate: int(math.Round(g.SampleRate()))},
	}
	for block := range g.Blocks(num) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Data = append(out.Data, block.Data...)
	}
	return out, nil
}

// Mix renders every generator on its own goroutine and sums the results
// channel by channel. Shorter renderings are padded with silence. All
// generators must share the channel count and sample rate.
func Mix(ctx context.Context, num int, gens ...Generator) (*audio.FloatBuffer, error) {
	if len(gens) == 0 {
		return nil, fmt.Errorf("%w: nothing to mix", ErrInvalidSource)
	}
	nch, fs := gens[0].NumChannels(), gens[0].SampleRate()
	for i, g := range gens[1:] {
		if g.NumChannels() != nch || g.SampleRate() != fs {
			return nil, fmt.Errorf("%w: generator %d has %d channels at %g Hz, want %d at %g Hz",
				ErrInvalidSource, i+1, g.NumChannels(), g.SampleRate(), nch, fs)
		}
	}

	rendered := make([]*audio.FloatBuffer, len(gens))
	eg, ctx := errgroup.WithContext(ctx)
	for i, g := range gens {
		eg.Go(func() error {
			buf, err := Collect(ctx, g, num)
			if err != nil {
				return err
			}
			rendered[i] = buf
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var n int
	for _, buf := range rendered {
		n = max(n, len(buf.Data))
	}
	out := &audio.FloatBuffer{Format: rendered[0].Format, Data: make([]float64, n)}
	for _, buf := range rendered {
		for i, v := range buf.Data {
			out.Data[i] += v
		}
	}
	logger.Debugf("mixed %d sources into %d frames", len(gens), n/nch)
	return out, nil
}
