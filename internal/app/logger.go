package app

import (
	"io"
	"log/slog"

	"plotwatch/internal/types"
)

// NewLogger creates a JSON slog.Logger for the given level name. Unknown
// names fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter wraps *slog.Logger to implement types.Logger. slog.Logger has
// Info, Error and Warn already, but its With returns *slog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

// AdaptLogger returns logger as a types.Logger.
func AdaptLogger(logger *slog.Logger) types.Logger {
	return &slogAdapter{logger: logger}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}
