// cmd/serialkit/convert.go
package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"serialkit/internal/config"
	"serialkit/pkg/serialkit"
)

// connectionConfig builds the library configuration from the loaded
// application configuration. The connection inherits the application log
// level unless serial.log_level is set.
func connectionConfig(cfg *config.Config, logger *zap.Logger) (serialkit.Config, error) {
	levelName := cfg.Serial.LogLevel
	if levelName == "" {
		levelName = cfg.Logging.Level
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return serialkit.Config{}, fmt.Errorf("invalid serial log level: %w", err)
	}

	terminator, err := cfg.Command.TerminatorBytes()
	if err != nil {
		return serialkit.Config{}, err
	}

	return serialkit.Config{
		Port:            cfg.Serial.Port,
		BaudRate:        cfg.Serial.BaudRate,
		DataBits:        cfg.Serial.DataBits,
		Parity:          serialkit.Parity(cfg.Serial.Parity),
		StopBits:        serialkit.StopBits(cfg.Serial.StopBits),
		Timeout:         cfg.Serial.Timeout,
		QuietInterval:   cfg.Command.QuietInterval,
		ResponseTimeout: cfg.Command.ResponseTimeout,
		Terminator:      terminator,
		LogLevel:        level,
		Logger:          logger,
	}, nil
}
