// Package logging builds the process zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger. format "console" selects the development encoder,
// anything else produces JSON. Unknown levels fall back to info.
func New(level, format string) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stdout"}

	return zapConfig.Build()
}

// Short truncates an identifier for log lines.
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
