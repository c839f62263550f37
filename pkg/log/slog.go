package log

import (
	"context"
	"log/slog"
	"sync"
)

// SlogLogger adapts *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

// With implements Logger.With.
func (s *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{l: s.l.With(fields...)}
}

// Enabled implements Logger.Enabled.
func (s *SlogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewSlogLogger(nil)

	// SetupLogger のハンドラが参照するレベル
	handlerLevel = new(slog.LevelVar)
)

// GetLogger returns the package-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the package-wide logger. Tests use it with TestLogger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Component returns the package-wide logger tagged with a component name.
func Component(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// GlobalProvider hands out loggers derived from the package-wide logger.
// SetLevel changes the level of the handler installed by SetupLogger.
type GlobalProvider struct{}

// GetLogger implements LoggerProvider.GetLogger.
func (GlobalProvider) GetLogger() Logger { return GetLogger() }

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (GlobalProvider) GetLoggerWithName(name string) Logger { return Component(name) }

// SetLevel implements LoggerProvider.SetLevel.
func (GlobalProvider) SetLevel(level Level) { handlerLevel.Set(slog.Level(level)) }
