// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plog

import (
	"io"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//nolint:gochecknoglobals
var (
	// globalLogger is expected to be set once at init and then again after flag parsing,
	// so a plain RWMutex is enough.
	globalMu     sync.RWMutex
	globalLogger logr.Logger
	globalFlush  func()
)

//nolint:gochecknoinits
func init() {
	// Make sure we always have a functional global logger.
	log, flush, err := newLogr("console", LevelWarning, nil)
	if err != nil {
		panic(err) // default logging config must always work
	}
	setGlobalLogger(log, flush)
}

// Setup reconfigures the global logger from the CLI's log level flag and returns a flush func
// which should be deferred by main.
func Setup(level LogLevel) (func(), error) {
	verbosity, err := verbosityForLevel(level)
	if err != nil {
		return nil, err
	}
	log, flush, err := newLogr("console", verbosity, nil)
	if err != nil {
		return nil, err
	}
	setGlobalLogger(log, flush)
	return flush, nil
}

// TestOnlySetGlobalLoggerWriter redirects the global logger to the given writer at debug
// verbosity. It returns a func which restores the previous global logger. Only for tests.
func TestOnlySetGlobalLoggerWriter(w io.Writer) func() {
	globalMu.Lock()
	prevLog, prevFlush := globalLogger, globalFlush
	globalMu.Unlock()

	log, flush, err := newLogr("console", LevelDebug, w)
	if err != nil {
		panic(err)
	}
	setGlobalLogger(log, flush)
	return func() { setGlobalLogger(prevLog, prevFlush) }
}

func setGlobalLogger(log logr.Logger, flush func()) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = log
	globalFlush = flush
}

func getGlobal() logr.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// newLogr builds a zap-backed logr.Logger. When w is nil the logger writes to stderr.
func newLogr(encoding string, verbosity int, w io.Writer) (logr.Logger, func(), error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderConfig.LevelKey = zapcore.OmitKey
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}

	if w != nil {
		// Test path: build the core directly around the provided writer.
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(w),
			// logr V levels surface as negative zap levels.
			zap.NewAtomicLevelAt(zapcore.Level(-verbosity)), //nolint:gosec // verbosity is small
		)
		log := zap.New(core)
		return zaprLogger(log), func() { _ = log.Sync() }, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = encoding
	cfg.EncoderConfig = encoderConfig
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity)) //nolint:gosec // verbosity is small
	log, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, nil, err
	}
	return zaprLogger(log), func() { _ = log.Sync() }, nil
}

func zaprLogger(log *zap.Logger) logr.Logger {
	return zapr.NewLoggerWithOptions(log,
		zapr.LogInfoLevel("level"),
		zapr.ErrorKey("error"),
	)
}
