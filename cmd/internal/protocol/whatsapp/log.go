package whatsapp

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogLogger forwards whatsmeow's printf-style logging to slog.
type slogLogger struct {
	log    *slog.Logger
	min    slog.Level
	module string
}

// NewLogger returns a waLog.Logger writing to log. Records below min are dropped.
func NewLogger(log *slog.Logger, min slog.Level) waLog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return &slogLogger{log: log, min: min}
}

func (l *slogLogger) emit(level slog.Level, msg string, args []any) {
	if level < l.min || !l.log.Enabled(context.Background(), level) {
		return
	}
	if l.module == "" {
		l.log.Log(context.Background(), level, fmt.Sprintf(msg, args...))
		return
	}
	l.log.Log(context.Background(), level, fmt.Sprintf(msg, args...), "wa_module", l.module)
}

func (l *slogLogger) Errorf(msg string, args ...any) { l.emit(slog.LevelError, msg, args) }
func (l *slogLogger) Warnf(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args) }
func (l *slogLogger) Infof(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args) }
func (l *slogLogger) Debugf(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args) }

func (l *slogLogger) Sub(module string) waLog.Logger {
	if l.module != "" {
		module = l.module + "/" + module
	}
	return &slogLogger{log: l.log, min: l.min, module: module}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels; anything else is error.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
