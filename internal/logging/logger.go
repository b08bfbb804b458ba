// Package logging builds the zap logger shared by the server and CLI.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// IsProduction reports whether env names a production deployment.
func IsProduction(env string) bool {
	switch strings.ToLower(env) {
	case "prod", "production":
		return true
	}
	return false
}

// New returns a JSON logger at info level for production and a colored
// console logger at debug level otherwise.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if IsProduction(env) {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("env", env)), nil
}

// Quiet returns a logger that only reports warnings and errors to stderr,
// for command-line use where stdout carries the output.
func Quiet() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = ""
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
