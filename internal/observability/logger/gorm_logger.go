package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig tunes statement logging for the store.
type GormConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func DefaultGormConfig() GormConfig {
	return GormConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// ParseGormLevel maps silent, error, warn and info to gorm levels.
func ParseGormLevel(raw string, def gormlogger.LogLevel) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "silent", "off":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn", "warning":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	}
	return def
}

// GormLogger writes gorm output through zap. Statements carry the cascade
// fields found on the context (correlation, actor and connection), so slow
// or failing queries can be tied back to the reading or payment that ran
// them.
type GormLogger struct {
	base *zap.Logger
	cfg  GormConfig
}

// NewGormLogger logs through base, or the global logger when base is nil.
func NewGormLogger(base *zap.Logger, cfg GormConfig) *GormLogger {
	if base != nil {
		base = base.Named("store")
	}
	return &GormLogger{base: base, cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error && !l.ignored(err):
		l.statement(ctx, zapcore.ErrorLevel, "store statement failed", fc, elapsed, zap.Error(err))
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		l.statement(ctx, zapcore.WarnLevel, "slow store statement", fc, elapsed,
			zap.Int64("slow_threshold_ms", l.cfg.SlowThreshold.Milliseconds()))
	case l.cfg.Level >= gormlogger.Info:
		l.statement(ctx, zapcore.DebugLevel, "store statement", fc, elapsed)
	}
}

// ParamsFilter drops bound values. They carry emails and payment references.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) ignored(err error) bool {
	return l.cfg.IgnoreRecordNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)
}

func (l *GormLogger) logger(ctx context.Context) *zap.Logger {
	base := l.base
	if base == nil {
		base = zap.L().Named("store")
	}
	return WithContext(ctx, base)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < min {
		return
	}
	if ce := l.logger(ctx).Check(level, msg); ce != nil {
		fields := []zap.Field{}
		if len(data) > 0 {
			fields = append(fields, zap.Any("data", data))
		}
		ce.Write(fields...)
	}
}

func (l *GormLogger) statement(ctx context.Context, level zapcore.Level, msg string, fc func() (string, int64), elapsed time.Duration, extra ...zap.Field) {
	ce := l.logger(ctx).Check(level, msg)
	if ce == nil {
		return
	}
	sql, rows := fc()
	sql = strings.TrimSpace(sql)
	op, table := describeSQL(sql)

	fields := make([]zap.Field, 0, 6+len(extra))
	fields = append(fields,
		zap.String("sql", sql),
		zap.String("operation", op),
		zap.String("table", table),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	ce.Write(append(fields, extra...)...)
}

// describeSQL returns the statement kind and the first table it touches.
func describeSQL(sql string) (operation, table string) {
	operation, table = "UNKNOWN", ""
	tokens := strings.Fields(sql)
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "SAVEPOINT", "RELEASE", "ROLLBACK":
			if operation == "UNKNOWN" {
				operation = token
			}
			if token == "UPDATE" && i+1 < len(tokens) && table == "" {
				table = tableName(tokens[i+1])
			}
		case "FROM", "INTO":
			if i+1 < len(tokens) && table == "" {
				table = tableName(tokens[i+1])
			}
		}
		if operation != "UNKNOWN" && table != "" {
			break
		}
	}
	return operation, table
}

func tableName(token string) string {
	return strings.Trim(token, "\"`();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
