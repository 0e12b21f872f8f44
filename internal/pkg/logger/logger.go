// Package logger holds the process-wide zap logger.
//
// Output is JSON unless the console format is configured.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.Logger
	level  zap.AtomicLevel
	once   sync.Once
)

// Init builds the global logger once. level is one of debug, info, warn or
// error; format is json or console.
func Init(lvl, format string) error {
	var initErr error
	once.Do(func() {
		global, initErr = build(lvl, format)
	})
	return initErr
}

func build(lvl, format string) (*zap.Logger, error) {
	level = zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", lvl, err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = level

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// L returns the global logger. Panics if Init has not succeeded.
func L() *zap.Logger {
	if global == nil {
		panic("logger.Init() must be called before logging")
	}
	return global
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Sync flushes buffered entries. It is a no-op before Init.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
