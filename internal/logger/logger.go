// Package logger - уровневое логирование приложения поверх charmbracelet/log.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

type Level = log.Level

const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

var std = log.NewWithOptions(os.Stderr, log.Options{
	Level:           LevelInfo,
	Formatter:       log.TextFormatter,
	ReportTimestamp: true,
	Prefix:          "todo",
})

func SetLevel(level Level) {
	std.SetLevel(level)
}

func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// ParseLevel разбирает уровень из конфига ("debug", "info", ...)
func ParseLevel(s string) (Level, error) {
	return log.ParseLevel(s)
}

func Debug(ctx context.Context, msg string, keyvals ...any) {
	std.Debug(msg, withContext(ctx, keyvals)...)
}

func Info(ctx context.Context, msg string, keyvals ...any) {
	std.Info(msg, withContext(ctx, keyvals)...)
}

func Warn(ctx context.Context, msg string, keyvals ...any) {
	std.Warn(msg, withContext(ctx, keyvals)...)
}

// Error пишет сообщение с ошибкой; err может быть nil
func Error(ctx context.Context, err error, msg string, keyvals ...any) {
	if err != nil {
		keyvals = append(keyvals, "err", err)
	}
	std.Error(msg, withContext(ctx, keyvals)...)
}

// withContext добавляет request_id, если он есть в контексте
func withContext(ctx context.Context, keyvals []any) []any {
	if ctx == nil {
		return keyvals
	}
	if id := middleware.GetReqID(ctx); id != "" {
		return append([]any{"request_id", id}, keyvals...)
	}
	return keyvals
}
