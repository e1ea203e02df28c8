// SPDX-License-Identifier: MIT
package transport

import (
	applog "beamform/internal/log"
	"beamform/pkg/utils"
)

var logger = applog.Component("transport")

// LoggingTransport writes a one line summary of every frame to the log.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Debugf("using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the peak of every frequency in frame.
func (lt *LoggingTransport) Send(frame *MapFrame) error {
	for f, row := range frame.Power {
		g := utils.PeakIndex(row, 0, len(row)-1)
		if g < 0 {
			continue
		}
		x, y := frame.Position(g)
		var freq float64
		if f < len(frame.Frequencies) {
			freq = frame.Frequencies[f]
		}
		logger.Infof("%s %.1f Hz: peak %.4g at (%.3f, %.3f)", frame.Variant, freq, row[g], x, y)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error { return nil }

var _ Transport = (*LoggingTransport)(nil)
