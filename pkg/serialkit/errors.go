// pkg/serialkit/errors.go
package serialkit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"go.bug.st/serial"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrPortNotFound     = errors.New("port not found")
	ErrPortBusy         = errors.New("port busy")
	ErrDeviceGone       = errors.New("device disconnected")
	ErrResponseTimeout  = errors.New("timed out waiting for response")
	ErrNegativeSize     = errors.New("negative read size")
)

// ConnectionError is returned when a port cannot be opened
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("serialkit: connect %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DeviceError is an I/O failure on an open connection
type DeviceError struct {
	Port string
	Op   string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("serialkit: %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// StateError is returned for operations that need an open connection
type StateError struct {
	Port string
	Op   string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("serialkit: %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// CommandError reports a failed command/response exchange. Partial holds
// whatever bytes arrived before the failure.
type CommandError struct {
	Port    string
	Command []byte
	Partial []byte
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("serialkit: command %q on %s: %v", e.Command, e.Port, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// classifyOpenError maps go.bug.st/serial open failures onto package sentinels
func classifyOpenError(err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return fmt.Errorf("%w: %v", ErrPortNotFound, err)
		case serial.PortBusy:
			return fmt.Errorf("%w: %v", ErrPortBusy, err)
		case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
			serial.InvalidStopBits, serial.InvalidTimeoutValue:
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrPortNotFound, err)
	}
	return err
}

// isDisconnect reports whether an I/O error means the device is gone and
// the handle cannot be used again
func isDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceGone) || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return true
	}
	return errors.Is(err, syscall.EIO) || errors.Is(err, syscall.ENXIO) || errors.Is(err, syscall.ENODEV)
}
