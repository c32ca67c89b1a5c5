package zap

import (
	"context"
	"time"

	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/types"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger implements gorm's logger.Interface over a types.Logger,
// following forbearing-gst/logger/zap/gorm.go's shape (stripped of the
// HTTP request/trace context fields this engine has no use for).
type GormLogger struct{ l types.Logger }

var _ gormlogger.Interface = (*GormLogger)(nil)

func (g *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }
func (g *GormLogger) Info(_ context.Context, str string, args ...any)  { g.l.Infow(str, args) }
func (g *GormLogger) Warn(_ context.Context, str string, args ...any)  { g.l.Warnw(str, args) }
func (g *GormLogger) Error(_ context.Context, str string, args ...any) { g.l.Errorw(str, args) }

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil {
		g.l.Errorz("sql execution failed", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	threshold := config.App.MetadataStore.SlowQueryThreshold
	if threshold > 0 && elapsed > threshold {
		g.l.Warnz("slow SQL detected", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed), zap.Duration("threshold", threshold))
		return
	}
	g.l.Debugz("sql executed", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
}
