package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"serialkit/internal/config"
	"serialkit/pkg/serialkit"
)

func testConfig() *config.Config {
	return &config.Config{
		Serial: config.SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
			DataBits: 7,
			Parity:   "even",
			StopBits: "2",
			Timeout:  250 * time.Millisecond,
		},
		Command: config.CommandConfig{
			QuietInterval:   30 * time.Millisecond,
			ResponseTimeout: 3 * time.Second,
			Terminator:      `\r\n`,
		},
		Logging: config.LoggingConfig{Level: "debug"},
	}
}

func TestConnectionConfig(t *testing.T) {
	logger := zap.NewNop()
	cfg, err := connectionConfig(testConfig(), logger)
	require.NoError(t, err)

	assert.Equal(t, serialkit.Config{
		Port:            "/dev/ttyUSB0",
		BaudRate:        115200,
		DataBits:        7,
		Parity:          serialkit.ParityEven,
		StopBits:        serialkit.StopBitsTwo,
		Timeout:         250 * time.Millisecond,
		QuietInterval:   30 * time.Millisecond,
		ResponseTimeout: 3 * time.Second,
		Terminator:      []byte("\r\n"),
		LogLevel:        zapcore.DebugLevel,
		Logger:          logger,
	}, cfg)
}

func TestConnectionConfig_SerialLogLevelOverrides(t *testing.T) {
	appCfg := testConfig()
	appCfg.Serial.LogLevel = "error"

	cfg, err := connectionConfig(appCfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, cfg.LogLevel)

	appCfg.Serial.LogLevel = "loud"
	_, err = connectionConfig(appCfg, zap.NewNop())
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   string
	}{
		{"nil", nil, ""},
		{"raw", []byte("\x01OK"), "\x01OK"},
		{"string", "OK", "OK\n"},
		{"lines", []string{"a", "b"}, "a\nb\n"},
		{"kv sorted", map[string]string{"k2": "v2", "k1": "v1"}, "k1=v1\nk2=v2\n"},
		{"other", 42, "42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printResult(&buf, tt.result))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRun_Usage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run([]string{"help"}, &buf))
	assert.Contains(t, buf.String(), "usage: serialkit")

	assert.Error(t, run(nil, &buf))
	assert.ErrorContains(t, run([]string{"frobnicate"}, &buf), "unknown command")
}
