package logger

import (
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New builds the process zap logger with JSON output at the given level and routes the
// standard slog default through it, so libraries logging via slog end up in the same stream.
func New(levelStr string, development bool) (*zap.Logger, error) {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = !development

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(zapslog.NewHandler(z.Core())))
	return z, nil
}

// ParseLevel accepts debug, info, warn and error in any case; empty means info.
func ParseLevel(levelStr string) (zapcore.Level, error) {
	if strings.TrimSpace(levelStr) == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(levelStr))
}
