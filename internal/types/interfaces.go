package types

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger is the narrow structured logging interface consumed by the
// notification and messaging packages. Binaries satisfy it by wrapping
// *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// NopLogger discards everything. Useful as a default in constructors.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)   {}
func (NopLogger) Error(string, ...any)  {}
func (NopLogger) Warn(string, ...any)   {}
func (n NopLogger) With(...any) Logger { return n }
