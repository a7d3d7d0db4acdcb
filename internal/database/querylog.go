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

// SlowQueryThreshold is the duration above which a statement is logged as slow.
const SlowQueryThreshold = 200 * time.Millisecond

// QueryLogger sends GORM output to slog. Failed statements log at error,
// slow ones at warn, everything else only in info mode. Record-not-found is
// not a failure.
type QueryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

var _ logger.Interface = (*QueryLogger)(nil)

// NewQueryLogger returns a warn-level QueryLogger writing to log.
func NewQueryLogger(log *slog.Logger) *QueryLogger {
	return &QueryLogger{log: log, level: logger.Warn, slow: SlowQueryThreshold}
}

func (q *QueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *QueryLogger) Info(ctx context.Context, format string, args ...interface{}) {
	q.printf(ctx, logger.Info, slog.LevelInfo, format, args)
}

func (q *QueryLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	q.printf(ctx, logger.Warn, slog.LevelWarn, format, args)
}

func (q *QueryLogger) Error(ctx context.Context, format string, args ...interface{}) {
	q.printf(ctx, logger.Error, slog.LevelError, format, args)
}

func (q *QueryLogger) printf(ctx context.Context, min logger.LogLevel, level slog.Level, format string, args []interface{}) {
	if q.level >= min {
		q.log.Log(ctx, level, fmt.Sprintf(format, args...))
	}
}

func (q *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	took := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case q.slow > 0 && took > q.slow && q.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case q.level >= logger.Info:
		level, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("took", took),
	}
	if err != nil && level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.log.LogAttrs(ctx, level, msg, attrs...)
}
