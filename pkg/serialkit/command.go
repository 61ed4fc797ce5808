// pkg/serialkit/command.go
package serialkit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseFunc turns a raw response into a value. A parser that fails makes
// SendCommand return the zero value of T instead of an error.
type ParseFunc[T any] func(raw []byte) (T, error)

// SendCommand writes command and collects the response. The response is
// complete when it ends with the configured terminator, or when bytes have
// arrived and the line then stays quiet for the configured quiet interval.
// timeout bounds the whole exchange; zero or negative selects the
// connection's response timeout. Bytes received by the deadline are parsed
// as the response; only a deadline with nothing received is an error.
//
// A nil parse returns the raw bytes when T is []byte and the zero value
// otherwise.
func SendCommand[T any](c *Connection, command []byte, parse ParseFunc[T], timeout time.Duration) (T, error) {
	var zero T

	if timeout <= 0 {
		timeout = c.cfg.ResponseTimeout
	}

	logger := c.logger.With(zap.String("operation_id", uuid.New().String()))
	startTime := time.Now()

	raw, err := c.exchange(command, timeout, logger)
	if err != nil {
		logger.Warn("Command failed",
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err),
		)
		return zero, err
	}

	logger.Debug("Command completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("bytes_read", len(raw)),
	)

	if parse == nil {
		if value, ok := any(raw).(T); ok {
			return value, nil
		}
		return zero, nil
	}

	value, err := safeParse(parse, raw)
	if err != nil {
		logger.Warn("Failed to parse response, returning empty result",
			zap.Error(err),
			zap.Binary("response", raw),
		)
		return zero, nil
	}
	return value, nil
}

// SendString sends a text command
func SendString[T any](c *Connection, command string, parse ParseFunc[T], timeout time.Duration) (T, error) {
	return SendCommand(c, []byte(command), parse, timeout)
}

// Send sends command and returns the raw response
func Send(c *Connection, command []byte, timeout time.Duration) ([]byte, error) {
	return SendCommand[[]byte](c, command, ParseRaw, timeout)
}

// exchange performs the write and the response read under the lock
func (c *Connection) exchange(command []byte, timeout time.Duration, logger *zap.Logger) ([]byte, error) {
	port, release, err := c.acquire("command")
	if err != nil {
		return nil, err
	}
	defer release()

	defer func() {
		// The loop below shortens the read timeout; put it back for ReadData.
		if c.port != nil {
			c.port.SetReadTimeout(c.cfg.Timeout)
		}
	}()

	deadline := time.Now().Add(timeout)

	if _, err := c.write(port, command); err != nil {
		return nil, c.commandError(command, nil, err)
	}

	buffer := make([]byte, DefaultReadChunk)
	var response []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if len(response) > 0 {
				logger.Debug("Response deadline reached, using received bytes", zap.Int("bytes_read", len(response)))
				return response, nil
			}
			return nil, c.commandError(command, nil, ErrResponseTimeout)
		}

		wait := remaining
		quiet := len(response) > 0 && c.cfg.QuietInterval < remaining
		if quiet {
			wait = c.cfg.QuietInterval
		}

		if err := port.SetReadTimeout(wait); err != nil {
			return nil, c.commandError(command, response, c.fail("command", err))
		}

		n, err := port.Read(buffer)
		if err != nil {
			return nil, c.commandError(command, response, c.fail("read", err))
		}

		if n == 0 {
			if quiet {
				return response, nil
			}
			continue
		}

		response = append(response, buffer[:n]...)
		if len(c.cfg.Terminator) > 0 && bytes.HasSuffix(response, c.cfg.Terminator) {
			return response, nil
		}
	}
}

func (c *Connection) commandError(command, partial []byte, err error) *CommandError {
	return &CommandError{
		Port:    c.cfg.Port,
		Command: append([]byte(nil), command...),
		Partial: partial,
		Err:     fmt.Errorf("error in command-response cycle: %w", err),
	}
}

// safeParse runs a caller parser, turning a panic into an error
func safeParse[T any](parse ParseFunc[T], raw []byte) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	return parse(raw)
}
