// Package logging builds the per-worker rotating log. Each worker writes
// lifecycle events, cycle boundaries, and errors to {logDir}/{id}.log;
// rotation keeps the file bounded so long-running workers never fill a disk.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
)

type LoggerOption struct {
	LogLevel   string
	MaxSizeMB  int
	MaxBackups int
	Console    bool
}

type Option func(o *LoggerOption)

// WithLogLevel sets the minimum level: debug, info, warn, or error.
func WithLogLevel(logLevel string) Option {
	return func(o *LoggerOption) {
		o.LogLevel = logLevel
	}
}

// WithConsole echoes log output to stdout, for foreground runs.
func WithConsole(enabled bool) Option {
	return func(o *LoggerOption) {
		o.Console = enabled
	}
}

// WithMaxSizeMB overrides the rotation threshold.
func WithMaxSizeMB(size int) Option {
	return func(o *LoggerOption) {
		o.MaxSizeMB = size
	}
}

// WithMaxBackups overrides how many rotated files are kept.
func WithMaxBackups(n int) Option {
	return func(o *LoggerOption) {
		o.MaxBackups = n
	}
}

// NewLogger creates a logger writing to path with rotation. The returned
// close func flushes buffered entries and releases the file.
func NewLogger(path string, opts ...Option) (*zap.Logger, func(), error) {
	option := &LoggerOption{
		MaxSizeMB:  defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
	}
	for _, opt := range opts {
		opt(option)
	}

	level := parseLevel(option.LogLevel)

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    option.MaxSizeMB,
		MaxBackups: option.MaxBackups,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), level),
	}
	if option.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() {
		_ = logger.Sync()
		_ = rotator.Close()
	}

	return logger, closeFn, nil
}

func parseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
