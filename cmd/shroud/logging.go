package main

import (
	"io"
	"time"

	"github.com/zoobzio/shroud"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger writes console-encoded logs to w at the given level.
// Nothing logged here may carry a cell value, a salt or a password.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func tableFields(t *shroud.Table) []zap.Field {
	return []zap.Field{
		zap.String("table", t.Name),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)),
		zap.String("mode", string(t.Mode())),
	}
}

func since(start time.Time) zap.Field {
	return zap.Duration("duration", time.Since(start))
}
