// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

// currentLevel holds the current global log level atomically.
var currentLevel atomic.Uint32

// loggerMu guards swapping the output writer; the stdlib logger itself
// serializes writes.
var (
	loggerMu sync.RWMutex
	logger   = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output to w and returns the previous writer.
// Tests use it to capture warnings emitted by the numerical packages.
func SetOutput(w io.Writer) io.Writer {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	prev := logger.Writer()
	logger.SetOutput(w)
	return prev
}

// Enabled reports whether a message at the given level would be written.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, prefix, msg string) {
	if !Enabled(level) {
		return
	}
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if prefix != "" {
		logger.Printf("[%s] %s: %s", level, prefix, msg)
		return
	}
	logger.Printf("[%s] %s", level, msg)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) {
	output(LevelDebug, "", fmt.Sprintf(format, v...))
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) {
	output(LevelInfo, "", fmt.Sprintf(format, v...))
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) {
	output(LevelWarn, "", fmt.Sprintf(format, v...))
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) {
	output(LevelError, "", fmt.Sprintf(format, v...))
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprint(v...))
}

// --- Component loggers ---

// Component prefixes every message with a subsystem name, e.g.
// "solver: 12 samples did not converge".
type Component string

// Debugf logs a formatted debug message for the component.
func (c Component) Debugf(format string, v ...any) {
	output(LevelDebug, string(c), fmt.Sprintf(format, v...))
}

// Infof logs a formatted info message for the component.
func (c Component) Infof(format string, v ...any) {
	output(LevelInfo, string(c), fmt.Sprintf(format, v...))
}

// Warnf logs a formatted warning message for the component.
func (c Component) Warnf(format string, v ...any) {
	output(LevelWarn, string(c), fmt.Sprintf(format, v...))
}

// Errorf logs a formatted error message for the component.
func (c Component) Errorf(format string, v ...any) {
	output(LevelError, string(c), fmt.Sprintf(format, v...))
}
