package main

import (
	"log/slog"
	"os"

	F "github.com/sagernet/sing/common/format"
	"github.com/sagernet/sing/common/logger"
)

// slogLogger adapts a slog.Logger to sing's logger.Logger.
type slogLogger struct {
	logger *slog.Logger
}

var _ logger.Logger = (*slogLogger)(nil)

func NewSlogLogger(slogger *slog.Logger) logger.Logger {
	return &slogLogger{logger: slogger}
}

func (l *slogLogger) Trace(args ...any) {
	l.logger.Debug(F.ToString(args...))
}

func (l *slogLogger) Debug(args ...any) {
	l.logger.Debug(F.ToString(args...))
}

func (l *slogLogger) Info(args ...any) {
	l.logger.Info(F.ToString(args...))
}

func (l *slogLogger) Warn(args ...any) {
	l.logger.Warn(F.ToString(args...))
}

func (l *slogLogger) Error(args ...any) {
	l.logger.Error(F.ToString(args...))
}

func (l *slogLogger) Fatal(args ...any) {
	l.logger.Error(F.ToString(args...))
	os.Exit(1)
}

func (l *slogLogger) Panic(args ...any) {
	message := F.ToString(args...)
	l.logger.Error(message)
	panic(message)
}
