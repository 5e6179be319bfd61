// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

// Package mlog provides the default global.Logger implementation, backed
// by zap's sugared logger.
package mlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AegisLabs/aegis/global"
)

// Logger implements global.Logger on top of a zap sugared logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Config holds construction options for the logger.
type Config struct {
	Debug   bool
	Console bool
}

// Option defines a configuration option for the logger.
type Option func(*Config)

// WithDebug enables or disables debug-level output.
func WithDebug(debug bool) Option {
	return func(c *Config) {
		c.Debug = debug
	}
}

// WithConsole switches to the human-readable console encoder instead of
// JSON output.
func WithConsole() Option {
	return func(c *Config) {
		c.Console = true
	}
}

// New creates a new logger with the supplied options.
func New(opts ...Option) (*Logger, error) {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}

	zc := zap.NewProductionConfig()
	if config.Debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if config.Console {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	// The SDK logs through the sugared API only, caller info points at the
	// wrapper otherwise.
	z, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: z.Sugar()}, nil
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string) {
	l.sugar.Debug(msg)
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string) {
	l.sugar.Info(msg)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warning logs a message at warn level.
func (l *Logger) Warning(msg string) {
	l.sugar.Warn(msg)
}

// Warningf logs a formatted message at warn level.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string) {
	l.sugar.Error(msg)
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Close flushes buffered log entries.
func (l *Logger) Close() {
	_ = l.sugar.Sync()
}

// Ensure Logger satisfies the shared contract.
var _ global.Logger = (*Logger)(nil)
