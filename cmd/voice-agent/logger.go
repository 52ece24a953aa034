package main

import (
	"github.com/upb/voice-agent/internal/observability"
	"go.uber.org/zap"
)

// initLogger builds the process logger from the configured level and format
func initLogger(level, format string) (*zap.Logger, error) {
	logger, err := observability.NewLogger(level, format)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "voice-agent")), nil
}
