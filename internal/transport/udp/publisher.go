// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"beamform/internal/transport"
)

// MaxPayload is the largest UDP payload over IPv4.
const MaxPayload = 65507

// ErrFrameTooLarge is returned for frames that do not fit one datagram.
var ErrFrameTooLarge = errors.New("udp: frame exceeds datagram size")

// FrameSource provides the frame to publish on each tick.
type FrameSource interface {
	Latest() *transport.MapFrame
}

// Publisher periodically packs the latest frame of a FrameSource and sends
// it through a Sender. It runs one goroutine between Start and Stop.
type Publisher struct {
	sender   *Sender
	source   FrameSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan.

	sequenceNum uint32
	packet      bytes.Buffer
	values      []float32
}

// NewPublisher creates a publisher. A non-positive interval defaults to
// 33ms.
func NewPublisher(interval time.Duration, sender *Sender, source FrameSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("udp publisher: frame source cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		logger.Warnf("invalid publish interval, defaulting to %s", interval)
	}
	return &Publisher{sender: sender, source: source, interval: interval}, nil
}

// Start launches the publishing goroutine. Calling Start on a running
// publisher does nothing.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop ends the publishing goroutine and waits for it. Stop on a stopped
// publisher does nothing.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// Close implements io.Closer.
func (p *Publisher) Close() error { return p.Stop() }

func (p *Publisher) publish() {
	frame := p.source.Latest()
	if frame == nil {
		return
	}
	p.sequenceNum++
	var err error
	p.values, err = EncodeFrame(&p.packet, p.sequenceNum, time.Now().UnixNano(), frame, p.values)
	if err != nil {
		logger.Errorf("error packing frame %d: %v", p.sequenceNum, err)
		return
	}
	if err := p.sender.Send(p.packet.Bytes()); err == nil {
		logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, p.packet.Len())
	}
}

/*
EncodeFrame writes one frame into buf (after resetting it), big endian:

	+-----------------+---------+-----------------+----------------------------+
	| Field           | Type    | Size (bytes)    | Description                |
	|-----------------|---------|-----------------|----------------------------|
	| Sequence number | uint32  | 4               | Monotonically increasing   |
	| Timestamp       | int64   | 8               | Nanoseconds since epoch    |
	| Frequency count | uint16  | 2               | F                          |
	| Grid count      | uint32  | 4               | G                          |
	| Frequencies     | float32 | F * 4           | Hz                         |
	| Power           | float32 | F * G * 4       | Row per frequency          |
	+-----------------+---------+-----------------+----------------------------+

scratch is reused for the float32 conversion and returned, possibly grown.
*/
func EncodeFrame(buf *bytes.Buffer, seq uint32, timestamp int64, frame *transport.MapFrame, scratch []float32) ([]float32, error) {
	nF, nG := len(frame.Power), frame.NumGrid()
	size := 18 + 4*nF + 4*nF*nG
	if size > MaxPayload || nF > math.MaxUint16 {
		return scratch, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	if len(frame.Frequencies) != nF {
		return scratch, fmt.Errorf("udp: %d frequencies for %d power rows", len(frame.Frequencies), nF)
	}

	scratch = scratch[:0]
	for _, f := range frame.Frequencies {
		scratch = append(scratch, float32(f))
	}
	for i, row := range frame.Power {
		if len(row) != nG {
			return scratch, fmt.Errorf("udp: power row %d has %d points, want %d", i, len(row), nG)
		}
		for _, v := range row {
			scratch = append(scratch, float32(v))
		}
	}

	buf.Reset()
	buf.Grow(size)
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(nF))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint32(nG))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, scratch)
	}
	return scratch, err
}
