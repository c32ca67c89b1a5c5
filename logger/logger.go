// Package logger declares the named subsystem loggers used across docxfer.
// Each package variable is assigned a concrete types.Logger by
// logger/zap.Init() at process start, mirroring the teacher's pattern of
// one zap core feeding several named, independently-rotated log files.
package logger

import (
	"github.com/forbearing/docxfer/types"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// Runtime logs process lifecycle events (startup, shutdown, config reload).
	Runtime types.Logger
	// Engine logs the Execution Engine's state machine and per-document loop.
	Engine types.Logger
	// Evaluator logs Mapping Evaluator field resolution and transformation warnings.
	Evaluator types.Logger
	// Consecutive logs the Consecutive Service's allocation/reservation/sweep activity.
	Consecutive types.Logger
	// Bonification logs the Bonification Processor's grouping and promotion steps.
	Bonification types.Logger
	// Facade logs connection acquisition, retries, and query telemetry.
	Facade types.Logger
	// Tracker logs Task Tracker registration/deregistration/cancellation.
	Tracker types.Logger
	// Store logs mapping/execution/counter store reads and writes.
	Store types.Logger
)

// Gorm is the gorm logger.Interface adapter store/ passes to gorm.Open,
// assigned by logger/zap.Init() alongside the named subsystem loggers.
var Gorm gormlogger.Interface

// Syncer is implemented by logger backends that can flush buffered writes.
// logger/zap.Logger satisfies it.
type Syncer interface {
	Sync() error
}

// Clean flushes all subsystem loggers. Call during graceful shutdown.
func Clean() {
	for _, l := range []types.Logger{Runtime, Engine, Evaluator, Consecutive, Bonification, Facade, Tracker, Store} {
		if s, ok := l.(Syncer); ok {
			// Sync errors on stdout/stderr-backed cores are expected on some
			// platforms and are intentionally ignored.
			_ = s.Sync()
		}
	}
}
