package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"rsiscalper/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap.Logger configured based on the given options.
// Every entry carries the service name so scalper and scanner logs can share a sink.
func New(opts config.LogConfig, service string) (*zap.Logger, error) {
	// Parse log level
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	// Determine encoding format
	encoding := "json"
	if opts.Environment == "dev" || opts.Format == "console" {
		encoding = "console"
	}

	encoderCfg := encoderConfig(encoding)

	var cores []zapcore.Core

	// Console (stdout) output
	var stdoutEncoder zapcore.Encoder
	if encoding == "console" {
		stdoutEncoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		stdoutEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	cores = append(cores, zapcore.NewCore(stdoutEncoder, zapcore.Lock(os.Stdout), lvl))

	// Optional file output with rotation via lumberjack
	if opts.OutputFile != "" {
		dir := filepath.Dir(opts.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.OutputFile,
			MaxSize:    10,   // max file size (MB) before rotation
			MaxBackups: 5,    // max number of old log files to keep
			MaxAge:     7,    // max age (days) to retain a log file
			Compress:   true, // compress rotated files
		})

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			fileWriter,
			lvl,
		))
	}

	core := zapcore.NewTee(cores...)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger, nil
}

// SymbolKey is the field every per-instrument log line is tagged with.
const SymbolKey = "symbol"

// ForSymbol returns a child of l whose entries carry symbol, so one
// instrument's bars, signals and orders can be grepped out of a shared log.
func ForSymbol(l *zap.Logger, symbol string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String(SymbolKey, symbol))
}

// encoderConfig returns a zapcore.EncoderConfig based on log format.
func encoderConfig(format string) zapcore.EncoderConfig {
	if format == "console" {
		return zap.NewDevelopmentEncoderConfig()
	}
	return zap.NewProductionEncoderConfig()
}
