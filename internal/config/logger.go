package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the logger for one process. Entries are named after the
// process and carry it as a field, so server and client logs can share a
// sink. Unknown levels fall back to info.
func NewLogger(process string, cfg LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zc.EncoderConfig.ConsoleSeparator = "  "
		zc.DisableCaller = true
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("logging.format %q: want console or json", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.InitialFields = map[string]any{"process": process}
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.Named(process), nil
}
