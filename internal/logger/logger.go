package logger

import (
	"hinan-bknd/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// New builds the process logger. Production writes JSON with ISO8601
// timestamps; other environments use the coloured console encoder.
// LOG_LEVEL overrides the environment's default level when it parses.
func New(cfg *config.Config) *Logger {
	var zapCfg zap.Config

	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.InitialFields = map[string]any{"service": "hinan-bknd"}

	if cfg.LogLevel != "" {
		if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
			zapCfg.Level = lvl
		}
	}

	l, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{l}
}

// Named returns a child logger for one component (importer, auth, places).
func (l *Logger) Named(component string) *zap.Logger {
	return l.Logger.Named(component)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.Logger.Sync() // stderr sync errors are expected on some platforms
}
