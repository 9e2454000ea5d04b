package voicesession

import (
	"context"
	"fmt"
	"log/slog"
)

const logPrefix = "voicesession: "

// Logger is the logging surface the session components write to. Errorf
// returns the formatted error so failure paths can build and propagate it in
// one step.
type Logger interface {
	ErrorPrintf(format string, args ...any)
	WarnPrintf(format string, args ...any)
	InfoPrintf(format string, args ...any)
	DebugPrintf(format string, args ...any)
	Errorf(format string, args ...any) error
}

// DefaultLogger returns a Logger backed by the process-wide slog default.
func DefaultLogger() Logger {
	return slogLogger{}
}

// SlogLogger returns a Logger writing to l.
func SlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

// slogLogger writes prefixed messages to an slog.Logger. A nil target
// resolves slog.Default at call time, so slog.SetDefault after construction
// still takes effect.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) logf(level slog.Level, format string, args ...any) {
	l := s.l
	if l == nil {
		l = slog.Default()
	}
	l.Log(context.Background(), level, logPrefix+fmt.Sprintf(format, args...))
}

func (s slogLogger) ErrorPrintf(format string, args ...any) {
	s.logf(slog.LevelError, format, args...)
}

func (s slogLogger) WarnPrintf(format string, args ...any) {
	s.logf(slog.LevelWarn, format, args...)
}

func (s slogLogger) InfoPrintf(format string, args ...any) {
	s.logf(slog.LevelInfo, format, args...)
}

func (s slogLogger) DebugPrintf(format string, args ...any) {
	s.logf(slog.LevelDebug, format, args...)
}

func (s slogLogger) Errorf(format string, args ...any) error {
	return fmt.Errorf(logPrefix+format, args...)
}
