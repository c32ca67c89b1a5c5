package types

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardLogger provides the traditional leveled logging methods.
type StandardLogger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// StructuredLogger provides key/value structured logging.
type StructuredLogger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Fatalw(msg string, keysAndValues ...any)
}

// ZapLogger provides zap.Field based structured logging.
type ZapLogger interface {
	Debugz(msg string, fields ...zap.Field)
	Infoz(msg string, fields ...zap.Field)
	Warnz(msg string, fields ...zap.Field)
	Errorz(msg string, fields ...zap.Field)
	Fatalz(msg string, fields ...zap.Field)
}

// Logger is the logging contract every subsystem logger (Engine, Evaluator,
// Consecutive, Bonification, Facade, Tracker, Store, Runtime) implements.
type Logger interface {
	With(fields ...string) Logger
	WithObject(name string, obj zapcore.ObjectMarshaler) Logger

	WithExecution(*ExecutionContext) Logger

	StandardLogger
	StructuredLogger
	ZapLogger
}
