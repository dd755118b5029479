// Copyright (c) 2023-2026 RapidaAI
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package commons holds the ambient concerns shared by every orchestrator
// package: structured logging and the typed error taxonomy.
package commons

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the sugared-zap surface every package in this module depends on.
// Keeping it as an interface (rather than depending on *zap.SugaredLogger
// directly) lets tests substitute a recording fake.
type Logger interface {
	Level() zapcore.Level

	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})

	// Benchmark records how long a named operation took. Every reaper
	// sweep logs through this so operators can spot slow sweeps without a
	// separate metrics sink.
	Benchmark(functionName string, duration time.Duration)

	Sync() error
}

type zapLogger struct {
	*zap.SugaredLogger
	level zapcore.Level
}

// NewLogger builds a zap-backed Logger writing JSON lines to stdout and, when
// logPath is non-empty, to a lumberjack-rotated file at the same time.
func NewLogger(level string, logPath string) (Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if logPath != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), lvl)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{SugaredLogger: base.Sugar(), level: lvl}, nil
}

// NewNop returns a Logger that discards everything, handy for tests that
// don't assert on log output.
func NewNop() Logger {
	return &zapLogger{SugaredLogger: zap.NewNop().Sugar(), level: zapcore.InvalidLevel}
}

func (l *zapLogger) Level() zapcore.Level {
	return l.level
}

func (l *zapLogger) Benchmark(functionName string, duration time.Duration) {
	l.Infow("benchmark", "fn", functionName, "duration", duration.String())
}
