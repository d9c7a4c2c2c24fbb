// Package logging builds the zap loggers used by regmap binaries.
package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ErrInvalidLevel is returned for a level name zap does not recognise.
var ErrInvalidLevel = errors.New("invalid log level")

// ErrInvalidFormat is returned for a format other than console or json.
var ErrInvalidFormat = errors.New("invalid log format")

// ParseLevel maps debug, info, warn or error (any case) to a zap level.
// An empty name means info.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	switch name {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("%w %q: must be one of debug, info, warn, error", ErrInvalidLevel, name)
}

// New builds a logger writing to stderr.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatConsole
	}

	var encCfg zapcore.EncoderConfig
	switch format {
	case FormatConsole:
		encCfg = zap.NewDevelopmentEncoderConfig()
	case FormatJSON:
		encCfg = zap.NewProductionEncoderConfig()
	default:
		return nil, fmt.Errorf("%w %q: must be console or json", ErrInvalidFormat, format)
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      format == FormatConsole,
		Encoding:         format,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build zap logger: %w", err)
	}
	return logger, nil
}
