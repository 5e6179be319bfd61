// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

// Package global holds the small set of contracts shared by every package
// in the module. Nothing here performs I/O.
package global

// Logger defines the logging contract used throughout the SDK. All
// consumers treat a nil Logger as "logging disabled" and guard every call,
// so implementations never need to handle a nil receiver.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warning(msg string)
	Warningf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})

	// Close flushes any buffered output and releases resources held by
	// the logger. Safe to call more than once.
	Close()
}
