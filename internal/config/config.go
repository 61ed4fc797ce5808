// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Command CommandConfig `mapstructure:"command"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	App     AppConfig     `mapstructure:"app"`
}

// SerialConfig represents the serial link settings
type SerialConfig struct {
	Port     string        `mapstructure:"port"`
	BaudRate int           `mapstructure:"baudrate"`
	DataBits int           `mapstructure:"databits"`
	Parity   string        `mapstructure:"parity"`
	StopBits string        `mapstructure:"stopbits"`
	Timeout  time.Duration `mapstructure:"timeout"`
	LogLevel string        `mapstructure:"log_level"`
}

// CommandConfig represents command/response settings
type CommandConfig struct {
	QuietInterval   time.Duration `mapstructure:"quiet_interval"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	Terminator      string        `mapstructure:"terminator"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig represents the HTTP bridge configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

var (
	validLevels  = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	validFormats = []string{"json", "console"}
	validEnvs    = []string{"development", "staging", "production", "test"}
)

// Load reads configuration from an optional YAML file, SERIALKIT_*
// environment variables and the given flags, in increasing precedence.
// An empty path searches for serialkit.yaml in the working directory and
// /etc/serialkit; a missing file is not an error in that case.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("serialkit")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/serialkit")
	}

	v.SetEnvPrefix("SERIALKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// flagKeys maps command-line flag names onto configuration keys
var flagKeys = map[string]string{
	"port":             "serial.port",
	"baudrate":         "serial.baudrate",
	"databits":         "serial.databits",
	"parity":           "serial.parity",
	"stopbits":         "serial.stopbits",
	"timeout":          "serial.timeout",
	"quiet-interval":   "command.quiet_interval",
	"response-timeout": "command.response_timeout",
	"terminator":       "command.terminator",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"log-output":       "logging.output",
	"listen":           "server.port",
}

// RegisterFlags declares the flags Load understands
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("port", "p", "", "serial port identifier")
	flags.IntP("baudrate", "b", 9600, "baud rate")
	flags.Int("databits", 8, "data bits (5-8)")
	flags.String("parity", "none", "parity: none, odd, even, mark, space")
	flags.String("stopbits", "1", "stop bits: 1, 1.5, 2")
	flags.Duration("timeout", time.Second, "read timeout")
	flags.Duration("quiet-interval", 50*time.Millisecond, "silence that ends a response")
	flags.Duration("response-timeout", 2*time.Second, "deadline for a whole command")
	flags.String("terminator", "", `response terminator, Go escapes allowed (e.g. "\n")`)
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "console", "log format: json or console")
	flags.String("log-output", "stderr", "stdout, stderr or a file path")
	flags.String("listen", "8085", "HTTP bridge port")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Serial defaults; empty keys are declared so SERIALKIT_* variables reach Unmarshal
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baudrate", 9600)
	v.SetDefault("serial.databits", 8)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.stopbits", "1")
	v.SetDefault("serial.timeout", "1s")
	v.SetDefault("serial.log_level", "")

	// Command defaults
	v.SetDefault("command.quiet_interval", "50ms")
	v.SetDefault("command.response_timeout", "2s")
	v.SetDefault("command.terminator", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{})

	// App defaults
	v.SetDefault("app.name", "serialkit")
	v.SetDefault("app.version", "0.2.0")
	v.SetDefault("app.environment", "development")
}

// validate validates the configuration
func validate(config *Config) error {
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	if config.Serial.LogLevel != "" && !slices.Contains(validLevels, config.Serial.LogLevel) {
		return fmt.Errorf("serial.log_level must be one of: %v", validLevels)
	}
	if !slices.Contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if _, err := config.Command.TerminatorBytes(); err != nil {
		return err
	}
	return nil
}

// TerminatorBytes decodes Go escape sequences in the terminator, so a
// terminator of `\r\n` given on the command line means CR LF
func (c CommandConfig) TerminatorBytes() ([]byte, error) {
	if c.Terminator == "" {
		return nil, nil
	}
	decoded, err := Unescape(c.Terminator)
	if err != nil {
		return nil, fmt.Errorf("command.terminator %q: %w", c.Terminator, err)
	}
	return []byte(decoded), nil
}

// Unescape interprets Go escape sequences such as \n, \r and \x1b.
// Strings without a backslash are returned unchanged.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	return strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
