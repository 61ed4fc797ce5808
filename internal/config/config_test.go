package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serialkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Serial.DataBits)
	assert.Equal(t, "none", cfg.Serial.Parity)
	assert.Equal(t, "1", cfg.Serial.StopBits)
	assert.Equal(t, time.Second, cfg.Serial.Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Command.QuietInterval)
	assert.Equal(t, 2*time.Second, cfg.Command.ResponseTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:8085", cfg.GetServerAddr())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
  baudrate: 115200
  parity: even
  stopbits: "2"
  timeout: 250ms
command:
  terminator: "\r\n"
logging:
  level: debug
  format: json
server:
  port: "9090"
  allowed_origins:
    - http://localhost:3000
app:
  environment: production
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, "even", cfg.Serial.Parity)
	assert.Equal(t, "2", cfg.Serial.StopBits)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.IsProduction())

	terminator, err := cfg.Command.TerminatorBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("\r\n"), terminator)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERIALKIT_SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("SERIALKIT_SERIAL_BAUDRATE", "57600")
	t.Setenv("SERIALKIT_LOGGING_LEVEL", "warn")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
  baudrate: 19200
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"-p", "/dev/ttyACM1", "--terminator", `\n`, "--listen", "9999"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.BaudRate)
	assert.Equal(t, "9999", cfg.Server.Port)

	terminator, err := cfg.Command.TerminatorBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("\n"), terminator)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "logging:\n  level: loud\n"), nil)
	assert.ErrorContains(t, err, "logging.level")

	_, err = Load(writeConfig(t, "logging:\n  format: xml\n"), nil)
	assert.ErrorContains(t, err, "logging.format")

	_, err = Load(writeConfig(t, "serial:\n  log_level: chatty\n"), nil)
	assert.ErrorContains(t, err, "serial.log_level")

	_, err = Load(writeConfig(t, "command:\n  terminator: '\\q'\n"), nil)
	assert.ErrorContains(t, err, "command.terminator")
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"STATUS", "STATUS"},
		{`STATUS\n`, "STATUS\n"},
		{`AT\r\n`, "AT\r\n"},
		{`\x1b@`, "\x1b@"},
		{`say "hi"\n`, "say \"hi\"\n"},
		{"already\nreal", "already\nreal"},
	}

	for _, tt := range tests {
		got, err := Unescape(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Unescape(`bad\q`)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
