// Package zap wires the docxfer/logger package variables to concrete
// zap-backed loggers, following forbearing-gst/logger/zap/zap.go: one
// zapcore.Core built from config, then a named *Logger per subsystem, each
// writing to its own lumberjack-rotated file under config.App.Logger.Dir.
package zap

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init initializes the global zap logger and every subsystem logger in
// package logger. Call once at process start, after config.Init().
func Init() error {
	zap.ReplaceGlobals(zap.New(
		zapcore.NewCore(newEncoder(), newWriter("runtime.log"), newLevel()),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.FatalLevel),
	))

	logger.Runtime = New("runtime.log")
	logger.Engine = New("engine.log")
	logger.Evaluator = New("evaluator.log")
	logger.Consecutive = New("consecutive.log")
	logger.Bonification = New("bonification.log")
	logger.Facade = New("facade.log")
	logger.Tracker = New("tracker.log")
	logger.Store = New("store.log")
	logger.Gorm = &GormLogger{l: logger.Store}

	return nil
}

// Clean flushes every zap core. Safe to call multiple times.
func Clean() {
	_ = zap.L().Sync()
}

// New builds a named subsystem Logger writing to its own rotated file.
func New(file string) *Logger {
	core := zapcore.NewCore(newEncoder(), newWriter(file), newLevel())
	return &Logger{zlog: zap.New(core, zap.AddCaller())}
}

func newLevel() zapcore.Level {
	lvl := zapcore.InfoLevel
	if config.App != nil {
		_ = lvl.UnmarshalText([]byte(strings.ToLower(config.App.Logger.Level)))
	}
	return lvl
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if config.App != nil && config.App.Logger.Format == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

func newWriter(file string) zapcore.WriteSyncer {
	if config.App == nil || len(config.App.Logger.Dir) == 0 {
		return zapcore.AddSync(os.Stdout)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(config.App.Logger.Dir, file),
		MaxSize:    config.App.Logger.MaxSize,
		MaxAge:     config.App.Logger.MaxAge,
		MaxBackups: config.App.Logger.MaxBackups,
		Compress:   true,
	})
}
