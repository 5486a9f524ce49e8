// Package logging builds the zap loggers used by every command.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string            // debug, info, warn, error
	Format string            // "json" or "console"
	Fields map[string]string // Added to every entry
}

// New creates a structured logger. The returned level can be changed at
// runtime, e.g. when the config file is reloaded.
func New(cfg Config) (*zap.Logger, zap.AtomicLevel, error) {
	zapConfig := zap.NewProductionConfig()

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}

	// Lambda captures stdout into CloudWatch.
	zapConfig.OutputPaths = []string{"stdout"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, level, err
	}

	fields := make([]zap.Field, 0, len(cfg.Fields))
	for k, v := range cfg.Fields {
		fields = append(fields, zap.String(k, v))
	}
	return logger.With(fields...), level, nil
}

// SetLevel updates level from its text form, ignoring unknown values.
func SetLevel(level zap.AtomicLevel, text string) bool {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(text)); err != nil {
		return false
	}
	level.SetLevel(l)
	return true
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
