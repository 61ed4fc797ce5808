// pkg/serialkit/config.go
package serialkit

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Parity is the parity bit mode of a serial link
type Parity string

const (
	ParityNone  Parity = "none"
	ParityOdd   Parity = "odd"
	ParityEven  Parity = "even"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// StopBits is the number of stop bits of a serial link
type StopBits string

const (
	StopBitsOne          StopBits = "1"
	StopBitsOnePointFive StopBits = "1.5"
	StopBitsTwo          StopBits = "2"
)

// Defaults applied by New for zero-valued fields
const (
	DefaultBaudRate        = 9600
	DefaultDataBits        = 8
	DefaultTimeout         = time.Second
	DefaultQuietInterval   = 50 * time.Millisecond
	DefaultResponseTimeout = 2 * time.Second
	DefaultReadChunk       = 1024

	// MaxReadChunk caps the buffer a single ReadData allocates; larger
	// requests return at most this many bytes per call.
	MaxReadChunk = 64 * DefaultReadChunk
)

// Config describes one serial link. It is copied into the Connection by New
// and never changes afterwards.
type Config struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baudrate"`
	DataBits int           `json:"databits"`
	Parity   Parity        `json:"parity"`
	StopBits StopBits      `json:"stopbits"`
	Timeout  time.Duration `json:"timeout"`

	// QuietInterval ends a command response once bytes stop arriving.
	QuietInterval time.Duration `json:"quiet_interval"`
	// ResponseTimeout bounds SendCommand when the caller passes no timeout.
	ResponseTimeout time.Duration `json:"response_timeout"`
	// Terminator, when set, completes a response as soon as it ends with it.
	Terminator []byte `json:"terminator,omitempty"`

	// LogLevel only affects diagnostic output.
	LogLevel zapcore.Level `json:"log_level"`
	// Logger is the base logger; a stderr console logger is built when nil.
	Logger *zap.Logger `json:"-"`
}

// withDefaults returns a copy of the config with defaults filled in
func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = DefaultDataBits
	}
	if c.Parity == "" {
		c.Parity = ParityNone
	}
	if c.StopBits == "" {
		c.StopBits = StopBitsOne
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.QuietInterval == 0 {
		c.QuietInterval = DefaultQuietInterval
	}
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.Terminator != nil {
		c.Terminator = append([]byte(nil), c.Terminator...)
	}
	return c
}

// Validate checks the configuration after defaults have been applied
func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: invalid baudrate %d", ErrInvalidConfig, c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: invalid databits %d", ErrInvalidConfig, c.DataBits)
	}
	if _, err := c.Parity.mode(); err != nil {
		return err
	}
	if _, err := c.StopBits.mode(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	}
	if c.QuietInterval < 0 {
		return fmt.Errorf("%w: negative quiet interval %s", ErrInvalidConfig, c.QuietInterval)
	}
	if c.ResponseTimeout < 0 {
		return fmt.Errorf("%w: negative response timeout %s", ErrInvalidConfig, c.ResponseTimeout)
	}
	return nil
}

// Mode converts the framing parameters into a go.bug.st/serial mode
func (c Config) Mode() (*serial.Mode, error) {
	parity, err := c.Parity.mode()
	if err != nil {
		return nil, err
	}
	stopBits, err := c.StopBits.mode()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}

func (p Parity) mode() (serial.Parity, error) {
	switch Parity(strings.ToLower(string(p))) {
	case ParityNone, "":
		return serial.NoParity, nil
	case ParityOdd:
		return serial.OddParity, nil
	case ParityEven:
		return serial.EvenParity, nil
	case ParityMark:
		return serial.MarkParity, nil
	case ParitySpace:
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("%w: invalid parity %q", ErrInvalidConfig, string(p))
	}
}

func (s StopBits) mode() (serial.StopBits, error) {
	switch strings.ToLower(string(s)) {
	case "1", "one", "":
		return serial.OneStopBit, nil
	case "1.5", "one-point-five", "onepointfive":
		return serial.OnePointFiveStopBits, nil
	case "2", "two":
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("%w: invalid stopbits %q", ErrInvalidConfig, string(s))
	}
}
