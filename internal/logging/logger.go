// Package logging builds the zap logger shared by the relay.
package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

// New returns a logger writing to stdout at level ("debug", "info", "warn",
// "error") in the given format.
func New(level, format string) (*zap.Logger, error) {
	return NewWithSink(level, format, zapcore.AddSync(os.Stdout))
}

// NewWithSink is New writing to sink.
func NewWithSink(level, format string, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, errors.Wrapf(err, "logging: level %q", level)
	}

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		cfg := encoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encoderConfig())
	default:
		return nil, errors.Errorf("logging: unknown format %q", format)
	}

	core := zapcore.NewCore(enc, sink, lvl)
	return zap.New(core, zap.AddCaller()), nil
}
