// Package logger provides a centralized logging system for the application
// using the slog structured logging library. The crawler and session layers
// take *slog.Logger values, so a host application can inject its own handler
// via SetOutput/Init before starting a crawl.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents the verbosity level of logging
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings, and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all other levels
	LevelDebug
)

var (
	// Default logger that writes to stderr with human-readable format
	defaultLogger *slog.Logger

	// Current log level
	logLevel = LevelInfo

	// Writer for logs
	logWriter io.Writer = os.Stderr
)

// SetOutput redirects log output; call before Init.
func SetOutput(w io.Writer) {
	logWriter = w
}

// Init initializes the logging system with the specified level
func Init(level LogLevel) {
	logLevel = level

	var logLevelSlog slog.Level
	switch logLevel {
	case LevelError:
		logLevelSlog = slog.LevelError
	case LevelWarn:
		logLevelSlog = slog.LevelWarn
	case LevelInfo:
		logLevelSlog = slog.LevelInfo
	case LevelDebug:
		logLevelSlog = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevelSlog,
	}

	// Text handler for human-readable output
	defaultLogger = slog.New(slog.NewTextHandler(logWriter, opts))
	slog.SetDefault(defaultLogger)

	Debug("Logger initialized", "level", logLevel)
}

// GetLogLevel returns the current log level
func GetLogLevel() LogLevel {
	return logLevel
}

// Error logs an error message with optional key-value pairs
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Warn logs a warning message with optional key-value pairs
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Info logs an informational message with optional key-value pairs
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Debug logs a debug message with optional key-value pairs
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// WithModule returns a logger with the module name as a context attribute
func WithModule(moduleName string) *slog.Logger {
	if defaultLogger == nil {
		Init(logLevel)
	}
	return defaultLogger.With("module", moduleName)
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return logLevel >= LevelDebug
}
