// pkg/serialkit/transport.go
package serialkit

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Connection is one serial link. All methods are safe for concurrent use;
// operations that touch the port handle are serialized.
type Connection struct {
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	port Port
	open atomic.Bool
}

// New validates the configuration and returns a closed Connection
func New(cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}

	logger, err := connectionLogger(cfg)
	if err != nil {
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}

	return &Connection{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Connect creates a Connection and opens it
func Connect(cfg Config) (*Connection, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}

// connectionLogger scopes the base logger to this port and applies the
// configured verbosity without touching any global logger
func connectionLogger(cfg Config) (*zap.Logger, error) {
	base := cfg.Logger
	if base == nil {
		var err error
		base, err = defaultLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
	} else if cfg.LogLevel > base.Level() {
		base = base.WithOptions(zap.IncreaseLevel(cfg.LogLevel))
	}

	return base.With(
		zap.String("protocol", "serial"),
		zap.String("port", cfg.Port),
	), nil
}

// defaultLogger is the stderr console logger used when Config.Logger is nil
func defaultLogger(level zapcore.Level) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = "console"
	zcfg.Sampling = nil
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	logger, err := zcfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build default logger: %w", err)
	}
	return logger, nil
}

// Open opens the port. Opening an open connection fails with ErrAlreadyConnected.
func (c *Connection) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		return &ConnectionError{Port: c.cfg.Port, Err: ErrAlreadyConnected}
	}

	c.logger.Debug("Opening serial port",
		zap.Int("baud_rate", c.cfg.BaudRate),
		zap.Int("data_bits", c.cfg.DataBits),
		zap.String("parity", string(c.cfg.Parity)),
		zap.String("stop_bits", string(c.cfg.StopBits)),
		zap.Duration("timeout", c.cfg.Timeout),
	)

	port, err := openerFor(c.cfg.Port)(c.cfg)
	if err != nil {
		c.logger.Error("Failed to open serial port", zap.Error(err))
		return &ConnectionError{Port: c.cfg.Port, Err: fmt.Errorf("failed to connect: %w", err)}
	}

	c.port = port
	c.open.Store(true)

	c.logger.Info("Serial port opened successfully", zap.Int("baud_rate", c.cfg.BaudRate))
	return nil
}

// Disconnect closes the port. It is a no-op on a closed connection.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}

	if err := c.release(); err != nil {
		c.logger.Warn("Error while closing serial port", zap.Error(err))
		return &DeviceError{Port: c.cfg.Port, Op: "disconnect", Err: err}
	}

	c.logger.Info("Serial port closed")
	return nil
}

// Close implements io.Closer
func (c *Connection) Close() error {
	return c.Disconnect()
}

// ReadData waits up to the configured timeout for data and returns at most
// maxSize bytes, and never more than MaxReadChunk in one call. A timeout
// yields an empty slice and no error.
func (c *Connection) ReadData(maxSize int) ([]byte, error) {
	port, release, err := c.acquire("read")
	if err != nil {
		return nil, err
	}
	defer release()

	if maxSize < 0 {
		return nil, &DeviceError{Port: c.cfg.Port, Op: "read", Err: ErrNegativeSize}
	}
	if maxSize == 0 {
		return []byte{}, nil
	}

	buffer := make([]byte, min(maxSize, MaxReadChunk))
	n, err := port.Read(buffer)
	if err != nil {
		return nil, c.fail("read", err)
	}

	result := make([]byte, n)
	copy(result, buffer[:n])

	c.logger.Debug("Data read from serial port",
		zap.Int("bytes_read", n),
		zap.Binary("data", result),
	)
	return result, nil
}

// WriteData writes p in full and returns the number of bytes written
func (c *Connection) WriteData(p []byte) (int, error) {
	port, release, err := c.acquire("write")
	if err != nil {
		return 0, err
	}
	defer release()

	return c.write(port, p)
}

// write must be called with the lock held
func (c *Connection) write(port Port, p []byte) (int, error) {
	n, err := port.Write(p)
	if err != nil {
		return n, c.fail("write", err)
	}
	if n != len(p) {
		return n, c.fail("write", fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(p)))
	}

	c.logger.Debug("Data written to serial port",
		zap.Int("bytes_written", n),
		zap.Binary("data", p),
	)
	return n, nil
}

// Flush discards pending input and output
func (c *Connection) Flush() error {
	port, release, err := c.acquire("flush")
	if err != nil {
		return err
	}
	defer release()

	if err := port.ResetInputBuffer(); err != nil {
		return c.fail("flush", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		return c.fail("flush", err)
	}

	c.logger.Debug("Serial buffers flushed")
	return nil
}

// IsConnected reports whether the connection is open. It does not wait for
// an in-flight operation.
func (c *Connection) IsConnected() bool {
	return c.open.Load()
}

// Config returns the effective configuration
func (c *Connection) Config() Config {
	cfg := c.cfg
	if cfg.Terminator != nil {
		cfg.Terminator = append([]byte(nil), cfg.Terminator...)
	}
	return cfg
}

// Port returns the port identifier
func (c *Connection) Port() string {
	return c.cfg.Port
}
