// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tcgsim/tcgsim-go/internal/config"
)

// New builds a logger from configuration. The level comes from
// cfg.Level unless the verbosity asks for something louder or quieter.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := Level(cfg)

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// Level resolves the effective zap level.
func Level(cfg config.LoggingConfig) zapcore.Level {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	switch cfg.ParsedVerbosity() {
	case config.VerbosityError:
		level = max(level, zapcore.ErrorLevel)
	case config.VerbosityWarning:
		level = max(level, zapcore.WarnLevel)
	case config.VerbosityVerbose, config.VerbosityVeryVerbose:
		level = zapcore.DebugLevel
	}
	return level
}

// MatchLogger returns the logger a match should use. Only very_verbose
// lets per-phase debug logs through; otherwise matches log at info and above.
func MatchLogger(base *zap.Logger, v config.Verbosity) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	named := base.Named("match")
	if v >= config.VerbosityVeryVerbose || !named.Core().Enabled(zapcore.DebugLevel) {
		return named
	}
	return named.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
}
