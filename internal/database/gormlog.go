package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger routes gorm's output through slog so SQL errors carry the
// request and tracking IDs of the context they ran under.
type GormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs at level and flags queries slower than 200ms.
func NewGormLogger(l *slog.Logger, level logger.LogLevel) *GormLogger {
	return &GormLogger{log: l, level: level, slow: slowQueryThreshold}
}

func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	g.printf(ctx, logger.Info, slog.LevelInfo, msg, data)
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	g.printf(ctx, logger.Warn, slog.LevelWarn, msg, data)
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	g.printf(ctx, logger.Error, slog.LevelError, msg, data)
}

func (g *GormLogger) printf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, data []any) {
	if g.level >= min {
		g.log.Log(ctx, level, fmt.Sprintf(msg, data...))
	}
}

// Trace reports failed statements, slow ones, and at Info level every one.
// Record-not-found is a normal outcome and never logged as an error.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		level, msg = slog.LevelError, "sql failed"
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow sql"
	case g.level >= logger.Info:
		level, msg = slog.LevelInfo, "sql"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, level, msg, attrs...)
}
