// Package logger builds the process logger: zap underneath, log/slog on top
// so services depend only on *slog.Logger.
package logger

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a slog logger backed by zap. Production uses the JSON
// encoder; anything else uses the colored console encoder. An invalid level
// falls back to info. Call sync before exit to flush buffered entries.
func New(env, level string) (logger *slog.Logger, sync func() error, err error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(lvl)

	z, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	handler := zapslog.NewHandler(z.Core(), zapslog.WithName("trustdir"), zapslog.WithCaller(env != "production"))
	return slog.New(handler), z.Sync, nil
}

// NewNop returns a logger that drops everything.
func NewNop() *slog.Logger {
	return slog.New(zapslog.NewHandler(zapcore.NewNopCore()))
}
